package main

import (
	"embed"
	"os"
	"path/filepath"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/windows"
	"go.uber.org/zap"

	"pulsenet/internal/config"
	"pulsenet/internal/logging"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	cliMode, debug := false, false
	for _, arg := range os.Args[1:] {
		switch arg {
		case "--cli", "-c":
			cliMode = true
		case "--debug", "-d":
			debug = true
		}
	}

	logger := logging.New(logging.Options{
		Console: cliMode,
		File:    logFile(cliMode),
		Debug:   debug,
	})
	defer logger.Sync()

	cfg, err := config.Load(config.Path())
	if err != nil {
		logger.Warn("using default configuration", zap.Error(err))
	}

	app := NewApp(cfg, logger)

	if cliMode {
		runCLI(app)
		return
	}

	err = wails.Run(&options.App{
		Title:            "PulseNet",
		Width:            1100,
		Height:           760,
		MinWidth:         860,
		MinHeight:        600,
		DisableResize:    false,
		Frameless:        true,
		BackgroundColour: &options.RGBA{R: 10, G: 12, B: 20, A: 255},
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		OnStartup:     app.startup,
		OnBeforeClose: app.beforeClose,
		OnShutdown:    app.shutdown,
		Bind: []interface{}{
			app,
		},
		Windows: &windows.Options{
			WebviewIsTransparent: false,
			WindowIsTranslucent:  false,
			Theme:                windows.Dark,
		},
	})

	if err != nil {
		logger.Error("wails exited", zap.Error(err))
		println("Error:", err.Error())
	}
}

// logFile is empty in CLI mode, where logs go to the terminal.
func logFile(cliMode bool) string {
	if cliMode {
		return ""
	}
	return filepath.Join(config.Dir(), "pulsenet.log")
}
