//go:build windows

package ping

import "golang.org/x/sys/windows"

// privileged reports whether raw ICMP sockets are likely to be permitted.
// Windows has no datagram ICMP sockets, so raw is attempted either way.
func privileged() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}
