/*
Package toolchain provides a set of utilities to drive C compilers and
linkers as black boxes. It abstracts the families used on Windows (GCC,
MSVC and Clang targeting either runtime) under one interface, so that a
shared library built with one of them can be consumed by another.

Drivers register themselves for the families they serve; import them for
their side effects:

	import _ "github.com/tmaxmax/abiprobe/pkg/toolchain/gnu"
*/
package toolchain
