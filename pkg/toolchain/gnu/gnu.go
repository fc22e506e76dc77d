/*
Package gnu provides a toolchain implementation for GNU style compiler
drivers targeting the MinGW runtime: GCC and Clang with a *-windows-gnu
target.

It registers itself for the gcc and clang-gnu families.
*/
package gnu

import (
	"os/exec"

	"github.com/tmaxmax/abiprobe/pkg/toolchain"
)

var execCommandContext = exec.CommandContext

func init() {
	for _, family := range []toolchain.Family{toolchain.FamilyGCC, toolchain.FamilyClangGNU} {
		toolchain.RegisterDriver(family, func(spec toolchain.Spec) (toolchain.Toolchain, error) {
			return New(spec)
		})
	}
}
