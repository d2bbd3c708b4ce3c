package cmd

import (
	"context"
	"os/exec"
)

// HiddenContext creates an exec.Cmd that does not flash a console window when
// launched from the GUI. The process is killed when ctx is done.
func HiddenContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	c := exec.CommandContext(ctx, name, args...)
	hide(c)
	return c
}
