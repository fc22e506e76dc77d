package probe

import (
	"context"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
)

var hostInfo = host.InfoWithContext

// describeHost returns a short description of the operating system the
// probes run on. It falls back to the Go target when the host cannot be queried.
func describeHost(ctx context.Context) string {
	info, err := hostInfo(ctx)
	if err != nil || info == nil {
		return runtime.GOOS + "/" + runtime.GOARCH
	}

	var parts []string
	for _, p := range []string{info.Platform, info.PlatformVersion, info.KernelArch} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return runtime.GOOS + "/" + runtime.GOARCH
	}

	return strings.Join(parts, " ")
}
