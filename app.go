package main

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"pulsenet/internal/adapters"
	"pulsenet/internal/config"
	"pulsenet/internal/dnstest"
	"pulsenet/internal/logging"
	"pulsenet/internal/ping"
	"pulsenet/internal/prefs"
	"pulsenet/internal/resolve"
	"pulsenet/internal/speedtest"
	"pulsenet/internal/system"
	"pulsenet/internal/update"
)

// Events emitted to the frontend.
const (
	EventCloseRequested    = "close-requested"
	EventSpeedTestProgress = "speedtest-progress"
	EventDNSProgress       = "dns-progress"
)

// updateCheckInterval and updateCheckBurst throttle release lookups.
const (
	updateCheckInterval = 10 * time.Second
	updateCheckBurst    = 2
)

// window is the part of the Wails runtime the App drives.
type window interface {
	Emit(event string, data ...any)
	Show()
	Hide()
	Minimise()
	Quit()
}

type wailsWindow struct {
	ctx context.Context
}

func (w wailsWindow) Emit(event string, data ...any) { runtime.EventsEmit(w.ctx, event, data...) }
func (w wailsWindow) Show() {
	runtime.WindowShow(w.ctx)
	runtime.WindowUnminimise(w.ctx)
}
func (w wailsWindow) Hide()     { runtime.WindowHide(w.ctx) }
func (w wailsWindow) Minimise() { runtime.WindowMinimise(w.ctx) }
func (w wailsWindow) Quit()     { runtime.Quit(w.ctx) }

// nopWindow stands in until the GUI has started, and in CLI mode.
type nopWindow struct{}

func (nopWindow) Emit(string, ...any) {}
func (nopWindow) Show()               {}
func (nopWindow) Hide()               {}
func (nopWindow) Minimise()           {}
func (nopWindow) Quit()               {}

type App struct {
	ctx    context.Context
	win    window
	cfg    *config.Config
	logger *zap.Logger

	pinger   *ping.Prober
	dns      *dnstest.Harness
	speed    *speedtest.Runner
	updates  *update.Checker
	adapters adapters.Manager

	closeAction *prefs.CloseAction
	prefs       *prefs.Store
	quitting    atomic.Bool
}

func NewApp(cfg *config.Config, logger *zap.Logger) *App {
	return newApp(cfg, logger, config.Dir())
}

func newApp(cfg *config.Config, logger *zap.Logger, prefsDir string) *App {
	if cfg == nil {
		cfg = config.Default()
	}
	logger = logging.OrNop(logger)
	store := prefs.NewStore(prefsDir)

	initial, _ := store.CloseAction()

	return &App{
		ctx:    context.Background(),
		win:    nopWindow{},
		cfg:    cfg,
		logger: logger,
		pinger: ping.NewProber(ping.Options{
			Timeout:     cfg.PingTimeout(),
			PayloadSize: cfg.PingPayloadSize,
			Resolver:    resolve.NewHostResolver(),
			Logger:      logger.Named("ping"),
		}),
		dns: dnstest.NewHarness(
			dnstest.NewProber(cfg.DNSTimeout(), logger.Named("dns")),
			cfg.DNSServers(),
			logger.Named("dns"),
		),
		speed: speedtest.NewRunner(cfg, logger.Named("speedtest")),
		updates: update.NewChecker(update.Options{
			API:       cfg.ReleaseAPI,
			Repo:      cfg.ReleaseRepo,
			Current:   Version,
			UserAgent: cfg.UserAgent,
			Interval:  updateCheckInterval,
			Burst:     updateCheckBurst,
			Logger:    logger.Named("update"),
		}),
		adapters:    adapters.New(cfg.AdapterCacheTTL(), logger.Named("adapters")),
		closeAction: prefs.NewCloseAction(initial),
		prefs:       store,
	}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	a.win = wailsWindow{ctx: ctx}
	a.logger.Info("started", zap.String("version", Version))
}

func (a *App) shutdown(ctx context.Context) {
	_ = a.logger.Sync()
}

// beforeClose decides whether the window may close. Returning true keeps it open.
func (a *App) beforeClose(ctx context.Context) bool {
	if a.quitting.Load() {
		return false
	}
	switch a.closeAction.Get() {
	case prefs.ActionExit:
		return false
	case prefs.ActionHide:
		a.win.Hide()
		return true
	default:
		a.win.Emit(EventCloseRequested, map[string]string{"reason": "close"})
		return true
	}
}

// ============================================================
// Diagnostics
// ============================================================

func (a *App) Ping(host string) ping.Result {
	return a.pinger.Ping(a.ctx, host)
}

func (a *App) TestDNSServers(domain string) dnstest.Response {
	return a.TestDNSServersWithCustom(domain, nil)
}

func (a *App) TestDNSServersWithCustom(domain string, customServers []string) dnstest.Response {
	return a.dns.RunWithProgress(a.ctx, domain, customServers, func(r dnstest.Result, current, total int) {
		a.win.Emit(EventDNSProgress, map[string]any{"result": r, "current": current, "total": total})
	})
}

// SpeedTest runs against provider "A" or "B".
func (a *App) SpeedTest(provider string) speedtest.Report {
	return a.speed.Run(a.ctx, provider, func(p speedtest.Progress) {
		a.win.Emit(EventSpeedTestProgress, p)
	})
}

func (a *App) SpeedTestCloudflare() speedtest.Report {
	return a.SpeedTest("A")
}

func (a *App) SpeedTestHetzner() speedtest.Report {
	return a.SpeedTest("B")
}

func (a *App) CheckForUpdates(includePrerelease bool) update.Result {
	return a.updates.Check(a.ctx, includePrerelease)
}

// ============================================================
// DNS Adapters
// ============================================================

func (a *App) ListDNSAdapters(forceRefresh bool) []adapters.Adapter {
	return a.adapters.List(a.ctx, forceRefresh)
}

func (a *App) SetAdapterDNS(adapter, primary, secondary string) adapters.Result {
	return a.adapters.Set(a.ctx, adapter, primary, secondary)
}

func (a *App) ResetAdapterDNS(adapter string) adapters.Result {
	return a.adapters.Reset(a.ctx, adapter)
}

func (a *App) GetDNSPresets() []adapters.Preset {
	return adapters.Presets()
}

// ============================================================
// Preferences & Window
// ============================================================

func (a *App) GetCloseAction() string {
	return a.closeAction.Get()
}

// SetCloseAction stores action when it is hide, exit or ask and returns the
// effective value.
func (a *App) SetCloseAction(action string) string {
	effective := a.closeAction.Set(action)
	if effective == action {
		if err := a.prefs.SetCloseAction(effective); err != nil {
			a.logger.Warn("failed to save close action", zap.Error(err))
		}
	}
	return effective
}

// PerformCloseAction carries out exit, hide or minimize. Anything else is ignored.
func (a *App) PerformCloseAction(action string) bool {
	switch action {
	case prefs.ActionExit:
		a.quitting.Store(true)
		a.win.Quit()
	case prefs.ActionHide:
		a.win.Hide()
	case prefs.ActionMinimize:
		a.win.Minimise()
	}
	return true
}

func (a *App) ShowWindow() {
	a.win.Show()
}

func (a *App) GetAutoLaunch() bool {
	enabled, _ := a.prefs.AutoLaunch()
	return enabled
}

// SetAutoLaunch saves the opt-in and returns the stored value.
func (a *App) SetAutoLaunch(enabled bool) bool {
	if err := a.prefs.SetAutoLaunch(enabled); err != nil {
		a.logger.Warn("failed to save auto-launch preference", zap.Error(err))
		return a.GetAutoLaunch()
	}
	return enabled
}

// ============================================================
// System Info
// ============================================================

func (a *App) GetUsername() string {
	return system.Username()
}

func (a *App) GetSystemInfo() (*system.Info, error) {
	return system.GetInfo()
}
