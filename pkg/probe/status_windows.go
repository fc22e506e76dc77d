//go:build windows

package probe

import "golang.org/x/sys/windows"

// StatusHeapCorruption is the NTSTATUS a process terminates with when
// the heap manager detects corrupted heap metadata.
const StatusHeapCorruption = uint32(windows.STATUS_HEAP_CORRUPTION)
