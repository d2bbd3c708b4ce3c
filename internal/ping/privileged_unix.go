//go:build unix

package ping

import "golang.org/x/sys/unix"

// privileged reports whether raw ICMP sockets are likely to be permitted.
func privileged() bool {
	return unix.Geteuid() == 0
}
