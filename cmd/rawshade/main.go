// Command rawshade drives the shading pipeline from the command line: a
// single-tile dispatch against synthetic textures, useful
// for smoke-testing a build against real GPU hardware without a host
// application.
package main

import (
	"github.com/gogpu/rawshade/internal/cmd"
)

func main() {
	cmd.Execute()
}
