/*
Package msvc provides a toolchain implementation for compilers targeting
the Microsoft C runtime: cl with lib, and Clang with a *-windows-msvc
target together with llvm-lib.

It registers itself for the msvc and clang-msvc families.
*/
package msvc

import (
	"os/exec"

	"github.com/tmaxmax/abiprobe/pkg/toolchain"
)

var execCommandContext = exec.CommandContext

func init() {
	for _, family := range []toolchain.Family{toolchain.FamilyMSVC, toolchain.FamilyClangMSVC} {
		toolchain.RegisterDriver(family, func(spec toolchain.Spec) (toolchain.Toolchain, error) {
			return New(spec)
		})
	}
}
