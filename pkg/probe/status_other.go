//go:build !windows

package probe

// StatusHeapCorruption is the NTSTATUS a Windows process terminates with when
// the heap manager detects corrupted heap metadata. Other hosts never report
// it natively; the value is kept so that matrices compare across hosts.
const StatusHeapCorruption uint32 = 0xC0000374
