package main

import (
	"context"
	"errors"
	"sync"
	"testing"

	"pulsenet/internal/config"
	"pulsenet/internal/dnstest"
	"pulsenet/internal/prefs"
)

type fakeWindow struct {
	mu     sync.Mutex
	events []string
	calls  []string
}

func (w *fakeWindow) Emit(event string, data ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, event)
}

func (w *fakeWindow) record(call string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, call)
}

func (w *fakeWindow) Show()     { w.record("show") }
func (w *fakeWindow) Hide()     { w.record("hide") }
func (w *fakeWindow) Minimise() { w.record("minimise") }
func (w *fakeWindow) Quit()     { w.record("quit") }

type stubLooker struct {
	fail map[string]bool
}

func (l stubLooker) Lookup(ctx context.Context, domain, server string) error {
	if l.fail[server] {
		return errors.New("refused")
	}
	return nil
}

func newTestApp(t *testing.T, dir string) (*App, *fakeWindow) {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	app := newApp(config.Default(), nil, dir)
	win := &fakeWindow{}
	app.win = win
	return app, win
}

func TestBeforeClose(t *testing.T) {
	tests := []struct {
		action    string
		wantOpen  bool
		wantCall  string
		wantEvent string
	}{
		{action: prefs.ActionAsk, wantOpen: true, wantEvent: EventCloseRequested},
		{action: prefs.ActionHide, wantOpen: true, wantCall: "hide"},
		{action: prefs.ActionExit, wantOpen: false},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			app, win := newTestApp(t, "")
			app.SetCloseAction(tt.action)

			if got := app.beforeClose(context.Background()); got != tt.wantOpen {
				t.Errorf("beforeClose() = %v, want %v", got, tt.wantOpen)
			}
			if tt.wantCall != "" && (len(win.calls) != 1 || win.calls[0] != tt.wantCall) {
				t.Errorf("calls = %v, want [%s]", win.calls, tt.wantCall)
			}
			if tt.wantEvent != "" && (len(win.events) != 1 || win.events[0] != tt.wantEvent) {
				t.Errorf("events = %v, want [%s]", win.events, tt.wantEvent)
			}
		})
	}
}

func TestPerformCloseAction(t *testing.T) {
	tests := []struct {
		action   string
		wantCall string
	}{
		{prefs.ActionHide, "hide"},
		{prefs.ActionMinimize, "minimise"},
		{"bogus", ""},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			app, win := newTestApp(t, "")
			if !app.PerformCloseAction(tt.action) {
				t.Fatal("PerformCloseAction() = false, want true")
			}
			if tt.wantCall == "" {
				if len(win.calls) != 0 {
					t.Errorf("calls = %v, want none", win.calls)
				}
				return
			}
			if len(win.calls) != 1 || win.calls[0] != tt.wantCall {
				t.Errorf("calls = %v, want [%s]", win.calls, tt.wantCall)
			}
		})
	}
}

func TestPerformCloseActionExitAllowsClose(t *testing.T) {
	app, win := newTestApp(t, "")
	app.SetCloseAction(prefs.ActionAsk)

	app.PerformCloseAction(prefs.ActionExit)
	if len(win.calls) != 1 || win.calls[0] != "quit" {
		t.Fatalf("calls = %v, want [quit]", win.calls)
	}
	// The close that follows Quit must not be intercepted again.
	if app.beforeClose(context.Background()) {
		t.Error("beforeClose() kept the window open after exit")
	}
	if len(win.events) != 0 {
		t.Errorf("events = %v, want none", win.events)
	}
}

func TestCloseActionPersists(t *testing.T) {
	dir := t.TempDir()
	app, _ := newTestApp(t, dir)

	if got := app.GetCloseAction(); got != prefs.DefaultCloseAction {
		t.Fatalf("initial close action = %q, want %q", got, prefs.DefaultCloseAction)
	}
	if got := app.SetCloseAction(prefs.ActionHide); got != prefs.ActionHide {
		t.Fatalf("SetCloseAction(hide) = %q", got)
	}
	if got := app.SetCloseAction("minimize"); got != prefs.ActionHide {
		t.Errorf("SetCloseAction(minimize) = %q, want previous value hide", got)
	}

	reopened, _ := newTestApp(t, dir)
	if got := reopened.GetCloseAction(); got != prefs.ActionHide {
		t.Errorf("close action after restart = %q, want hide", got)
	}
}

func TestAutoLaunch(t *testing.T) {
	dir := t.TempDir()
	app, _ := newTestApp(t, dir)

	if app.GetAutoLaunch() {
		t.Fatal("auto-launch enabled before opting in")
	}
	if !app.SetAutoLaunch(true) {
		t.Fatal("SetAutoLaunch(true) = false")
	}

	reopened, _ := newTestApp(t, dir)
	if !reopened.GetAutoLaunch() {
		t.Error("auto-launch not persisted")
	}
}

func TestTestDNSServersEmitsProgress(t *testing.T) {
	app, win := newTestApp(t, "")
	app.dns = dnstest.NewHarness(stubLooker{fail: map[string]bool{"1.1.1.1:53": true}}, []string{"8.8.8.8", "1.1.1.1"}, nil)

	resp := app.TestDNSServersWithCustom("https://example.com/", []string{"9.9.9.9"})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %s", *resp.Error)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("got %d results, want 3", len(resp.Results))
	}
	if !resp.Results[0].Status || resp.Results[1].Status || !resp.Results[2].Status {
		t.Errorf("statuses = %v %v %v, want true false true",
			resp.Results[0].Status, resp.Results[1].Status, resp.Results[2].Status)
	}
	if len(win.events) != 3 {
		t.Errorf("emitted %d events, want 3", len(win.events))
	}
	for _, e := range win.events {
		if e != EventDNSProgress {
			t.Errorf("event = %q, want %q", e, EventDNSProgress)
		}
	}
}

func TestTestDNSServersInvalidDomain(t *testing.T) {
	app, win := newTestApp(t, "")

	resp := app.TestDNSServers("   ")
	if resp.Error == nil || *resp.Error != "invalid-domain" {
		t.Fatalf("Error = %v, want invalid-domain", resp.Error)
	}
	if len(resp.Results) != 0 {
		t.Errorf("got %d results, want 0", len(resp.Results))
	}
	if len(win.events) != 0 {
		t.Errorf("events = %v, want none", win.events)
	}
}

func TestSpeedTestUnknownProvider(t *testing.T) {
	app, _ := newTestApp(t, "")

	rep := app.SpeedTest("C")
	if rep.Error == nil || *rep.Error != "invalid-input" {
		t.Fatalf("Error = %v, want invalid-input", rep.Error)
	}
	if rep.IP != "N/A" || rep.Country != "N/A" {
		t.Errorf("geo = %q/%q, want N/A", rep.IP, rep.Country)
	}
}

func TestGetDNSPresets(t *testing.T) {
	app, _ := newTestApp(t, "")
	presets := app.GetDNSPresets()
	if len(presets) != 4 {
		t.Fatalf("got %d presets, want 4", len(presets))
	}
	for _, p := range presets {
		if p.Primary == "" || p.Secondary == "" {
			t.Errorf("preset %q missing servers", p.ID)
		}
	}
}

func TestGetVersion(t *testing.T) {
	app, _ := newTestApp(t, "")
	if got := app.GetVersion(); got != Version {
		t.Errorf("GetVersion() = %q, want %q", got, Version)
	}
}
