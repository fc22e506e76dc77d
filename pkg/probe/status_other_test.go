//go:build !windows

package probe_test

// Exit statuses only keep their low byte outside Windows, so fake probes
// use the low byte of STATUS_HEAP_CORRUPTION instead.
var (
	fakeHeapExit          = 0x74
	fakeHeapStatus uint32 = 0x74
)
