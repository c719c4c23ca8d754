package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gogpu/rawshade/internal/gpu"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Report the GPU adapter that would back the shading pipeline",
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(_ *cobra.Command, _ []string) error {
	b := gpu.NewBackend()
	if err := b.Init(); err != nil {
		return fmt.Errorf("query gpu adapter: %w", err)
	}
	defer b.Close()

	info := b.GPUInfo()
	if info == nil {
		fmt.Println("gpu adapter selected, no further info available")
		return nil
	}
	fmt.Println(info.String())
	return nil
}
