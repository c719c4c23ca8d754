package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gogpu/rawshade/adjustments"
	"github.com/gogpu/rawshade/dispatcher"
	"github.com/gogpu/rawshade/histogram"
	"github.com/gogpu/rawshade/internal/gpu"
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Run one tile through the shading pipeline with the identity adjustment bundle",
	RunE:  runDispatch,
}

func init() {
	rootCmd.AddCommand(dispatchCmd)

	dispatchCmd.Flags().Int("width", 512, "tile width in pixels")
	dispatchCmd.Flags().Int("height", 512, "tile height in pixels")
	dispatchCmd.Flags().Float64("exposure", 0, "global exposure offset in stops")

	for _, f := range []string{"width", "height", "exposure"} {
		if err := viper.BindPFlag("dispatch."+f, dispatchCmd.Flags().Lookup(f)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", f, err))
		}
	}
}

func runDispatch(_ *cobra.Command, _ []string) error {
	width := viper.GetInt("dispatch.width")
	height := viper.GetInt("dispatch.height")
	exposure := viper.GetFloat64("dispatch.exposure")

	dispatcher.SetLogger(logger)

	d, err := dispatcher.New()
	if err != nil {
		return fmt.Errorf("compile shading pipeline: %w", err)
	}
	defer d.Close()

	device := d.Device()
	input, err := gpu.CreateTexture(device, gpu.TextureConfig{Width: width, Height: height, Format: gpu.TextureFormatRGBA32Float, Label: "cli_input"})
	if err != nil {
		return fmt.Errorf("create input texture: %w", err)
	}
	defer input.Close()

	output, err := gpu.CreateTexture(device, gpu.TextureConfig{Width: width, Height: height, Format: gpu.TextureFormatRGBA8, Label: "cli_output", Usage: gpu.StorageOutputUsage})
	if err != nil {
		return fmt.Errorf("create output texture: %w", err)
	}
	defer output.Close()

	// The four blur providers are a required binding (spec.md §6); the
	// identity bundle below leaves sharpness/clarity/structure/centre at
	// zero, so their exact contents don't matter for this smoke dispatch,
	// but the binding itself must still be present.
	blurs := make([]*gpu.GPUTexture, 4)
	for i, label := range []string{"cli_blur_sharpness", "cli_blur_tonal", "cli_blur_clarity", "cli_blur_structure"} {
		b, err := gpu.CreateTexture(device, gpu.TextureConfig{Width: width, Height: height, Format: gpu.TextureFormatRGBA32Float, Label: label})
		if err != nil {
			return fmt.Errorf("create %s texture: %w", label, err)
		}
		defer b.Close()
		blurs[i] = b
	}

	global := adjustments.Global{
		Exposure: float32(exposure),
		Curves: adjustments.Curves{
			Luma: adjustments.IdentityCurve(), Red: adjustments.IdentityCurve(),
			Green: adjustments.IdentityCurve(), Blue: adjustments.IdentityCurve(),
		},
		AgX: adjustments.DefaultAgXMatrices(),
	}
	uniform := adjustments.Uniform{Global: global}

	tile := dispatcher.Tile{Width: width, Height: height}
	tex := dispatcher.TextureSet{
		Input: input, Output: output,
		Sharpness: blurs[0], Tonal: blurs[1], Clarity: blurs[2], Structure: blurs[3],
	}

	if err := d.Dispatch(context.Background(), tile, tex, uniform); err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}

	logger.Info("tile dispatched", "width", width, "height", height)

	pixels, err := d.ReadbackOutput(output)
	if err != nil {
		return fmt.Errorf("readback output: %w", err)
	}
	readback := histogram.NewReadback()
	readback.AddPixels(pixels)
	logger.Info("output histogram built", "buckets", readback.Red.NumBuckets,
		"red_min", readback.Red.ValMin, "red_max", readback.Red.ValMax)
	return nil
}
