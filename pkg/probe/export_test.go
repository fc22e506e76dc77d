package probe

import (
	"context"
	"os/exec"

	"github.com/shirou/gopsutil/v3/host"
)

var (
	NormalizeExitCode = normalizeExitCode
	DescribeHost      = describeHost
)

func SetExecCommandContext(f func(ctx context.Context, name string, args ...string) *exec.Cmd) (restore func()) {
	prev := execCommandContext
	execCommandContext = f
	return func() { execCommandContext = prev }
}

func SetHostInfo(f func(ctx context.Context) (*host.InfoStat, error)) (restore func()) {
	prev := hostInfo
	hostInfo = f
	return func() { hostInfo = prev }
}
