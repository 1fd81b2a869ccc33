package inventory

import (
	"context"
	"os"
	"runtime"

	"github.com/agentsh/mcpscope/pkg/types"
	"github.com/shirou/gopsutil/v4/host"
)

// HostInfo returns the hostname and operating system of the scanning host.
type HostInfo func(ctx context.Context) (string, types.OSInfo)

// LocalHost reads host metadata through gopsutil, falling back to the
// standard library when it is unavailable.
func LocalHost(ctx context.Context) (string, types.OSInfo) {
	info, err := host.InfoWithContext(ctx)
	if err != nil || info == nil {
		name, _ := os.Hostname()
		return name, types.OSInfo{Name: runtime.GOOS}
	}
	osName := info.OS
	if osName == "" {
		osName = runtime.GOOS
	}
	release := info.PlatformVersion
	if release == "" {
		release = info.KernelVersion
	}
	hostname := info.Hostname
	if hostname == "" {
		hostname, _ = os.Hostname()
	}
	return hostname, types.OSInfo{Name: osName, Release: release}
}
