//go:build !unix && !windows

package ping

func privileged() bool { return false }
