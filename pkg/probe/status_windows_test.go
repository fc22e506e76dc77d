package probe_test

import "github.com/tmaxmax/abiprobe/pkg/probe"

// Fake probes exit with the real heap corruption status.
var (
	fakeHeapExit   = -1073740940
	fakeHeapStatus = probe.StatusHeapCorruption
)
