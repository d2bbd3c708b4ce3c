//go:build windows

package adapters

import (
	"context"
	"testing"
)

func TestListAdaptersLive(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping PowerShell test in short mode")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := New(0, nil)
	adapters := m.List(ctx, true)
	t.Logf("found %d adapters", len(adapters))
	for _, a := range adapters {
		if a.Name == "" {
			t.Error("adapter with empty name")
		}
		t.Logf("  %s: %v", a.Name, a.DNS)
	}
}
