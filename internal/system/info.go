package system

import (
	"fmt"
	"os"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v4/host"
	gnet "github.com/shirou/gopsutil/v4/net"
)

// staticCache holds host details that never change during a session.
var (
	staticOnce  sync.Once
	staticCache *staticInfo
)

type staticInfo struct {
	OS         string
	Hostname   string
	Platform   string
	KernelArch string
}

func loadStaticInfo() *staticInfo {
	staticOnce.Do(func() {
		s := &staticInfo{OS: runtime.GOOS, KernelArch: runtime.GOARCH}
		if hostInfo, err := host.Info(); err == nil {
			s.Hostname = hostInfo.Hostname
			s.Platform = strings.TrimSpace(hostInfo.Platform + " " + hostInfo.PlatformVersion)
			if hostInfo.KernelArch != "" {
				s.KernelArch = hostInfo.KernelArch
			}
		}
		if s.Hostname == "" {
			s.Hostname, _ = os.Hostname()
		}
		staticCache = s
	})
	return staticCache
}

// Info summarises the host a diagnostics run is executed from.
type Info struct {
	Username   string      `json:"username"`
	Hostname   string      `json:"hostname"`
	OS         string      `json:"os"`
	Platform   string      `json:"platform"`
	KernelArch string      `json:"kernelArch"`
	Uptime     string      `json:"uptime"`
	Interfaces []Interface `json:"interfaces"`
}

// Interface is one network interface that is up and not loopback.
type Interface struct {
	Name         string   `json:"name"`
	MTU          int      `json:"mtu"`
	HardwareAddr string   `json:"hardwareAddr"`
	Addrs        []string `json:"addrs"`
}

// GetInfo gathers the host summary. Static fields are cached after the
// first call; uptime and interfaces are refreshed each time.
func GetInfo() (*Info, error) {
	s := loadStaticInfo()

	info := &Info{
		Username:   Username(),
		Hostname:   s.Hostname,
		OS:         s.OS,
		Platform:   s.Platform,
		KernelArch: s.KernelArch,
	}

	if uptimeSecs, err := host.Uptime(); err == nil {
		info.Uptime = formatUptime(uptimeSecs)
	}

	ifaces, err := ActiveInterfaces()
	if err != nil {
		return info, err
	}
	info.Interfaces = ifaces
	return info, nil
}

// ActiveInterfaces lists interfaces that are up, skipping loopback.
func ActiveInterfaces() ([]Interface, error) {
	stats, err := gnet.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list network interfaces: %w", err)
	}

	out := []Interface{}
	for _, st := range stats {
		if !slices.Contains(st.Flags, "up") || slices.Contains(st.Flags, "loopback") {
			continue
		}
		addrs := make([]string, 0, len(st.Addrs))
		for _, a := range st.Addrs {
			addrs = append(addrs, a.Addr)
		}
		out = append(out, Interface{
			Name:         st.Name,
			MTU:          st.MTU,
			HardwareAddr: st.HardwareAddr,
			Addrs:        addrs,
		})
	}
	return out, nil
}

// Username returns the login name from USERNAME, then USER, else "User".
func Username() string {
	return usernameFrom(os.Getenv)
}

func usernameFrom(getenv func(string) string) string {
	for _, key := range []string{"USERNAME", "USER"} {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
	}
	return "User"
}

// formatUptime converts seconds into a human-readable string like "3d 5h 23m".
func formatUptime(seconds uint64) string {
	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	minutes := (seconds % 3600) / 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
