// Package main provides the entry point for the Garment Studio application.
package main

import (
	"os"

	"garment-studio/internal/app"
	"garment-studio/internal/config"
	"garment-studio/internal/logging"
	"garment-studio/internal/mask"
	"garment-studio/internal/submit"
	"garment-studio/internal/taskstore/backends"
	"garment-studio/internal/tenant"
	"garment-studio/internal/version"
	"garment-studio/pkg/colorutil"
	"garment-studio/ui/mainwindow"
	"garment-studio/ui/prefs"

	fyneapp "fyne.io/fyne/v2/app"
	"github.com/sirupsen/logrus"
)

const appID = "dev.garmentstudio.app"

func main() {
	if err := config.LoadEnv(); err != nil {
		logrus.WithError(err).Warn("Ignoring .env")
	}

	cfgPath, err := config.DefaultPath()
	if err != nil {
		logrus.WithError(err).Fatal("Cannot locate config directory")
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logrus.WithError(err).Warn("Invalid config, using defaults")
		cfg = config.DefaultConfig()
	}
	if err := logging.Setup(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format}); err != nil {
		logrus.WithError(err).Warn("Bad log settings")
	}
	logrus.WithFields(logrus.Fields{
		"version": version.String(),
		"tenant":  cfg.TenantURL(),
	}).Info("Starting Garment Studio")

	dir, err := config.Dir()
	if err != nil {
		logrus.WithError(err).Fatal("Cannot locate config directory")
	}
	tokens := tenant.NewFileTokenStore(dir, config.EnvToken)
	client := tenant.NewClient(cfg.TenantURL(), tokens, tenant.WithTimeout(cfg.Tenant.Timeout))

	store, err := backends.Open(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Cannot open submission history")
	}
	defer store.Close()

	uiPrefs := prefs.Load()
	brush := newBrush(cfg.Brush, uiPrefs)
	state := app.NewState(mask.NewEngine(brush), cfg.Session)
	orch := submit.New(client, store, submit.OptionsFromConfig(cfg.Submit))

	fyneApp := fyneapp.NewWithID(appID)
	fyneApp.Settings().SetTheme(&app.StudioTheme{})

	win := mainwindow.New(fyneApp, mainwindow.Deps{
		State:  state,
		Orch:   orch,
		Store:  store,
		Tokens: tokens,
		Prefs:  uiPrefs,
	})

	// A project path on the command line is opened at startup.
	if len(os.Args) > 1 {
		projectPath := os.Args[1]
		if err := state.LoadProject(projectPath); err != nil {
			logrus.WithError(err).WithField("path", projectPath).Warn("Failed to load project")
		}
	}

	reloader := setupConfigReload(cfgPath, cfg, state, orch)
	if reloader != nil {
		defer reloader.Stop()
	}

	win.ShowAndRun()
}

// newBrush starts from the last brush used, falling back to the config.
func newBrush(c config.BrushConfig, p *prefs.Prefs) *mask.BrushState {
	tool, err := mask.ParseTool(c.Tool)
	if err != nil {
		tool = mask.ToolPaint
	}
	b := mask.NewBrushState(p.BrushTool(tool), p.BrushSize(c.Size))
	col, err := colorutil.ParseHex(c.Color)
	if err != nil {
		logrus.WithError(err).Warn("Using default brush color")
		return b
	}
	b.SetColor(col)
	return b
}

// setupConfigReload applies session and submission settings when the config
// file changes. Tenant URL changes need a restart.
func setupConfigReload(path string, current *config.Config, state *app.State, orch *submit.Orchestrator) *app.ConfigReloader {
	reloader := app.NewConfigReloader(path, 0)
	tenantURL := current.TenantURL()
	reloader.OnReload(func(cfg *config.Config) {
		state.SetLimits(cfg.Session)
		orch.SetOptions(submit.OptionsFromConfig(cfg.Submit))
		if err := logging.Setup(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format}); err != nil {
			logrus.WithError(err).Warn("Bad log settings")
		}
		if cfg.TenantURL() != tenantURL {
			logrus.WithField("tenant", cfg.TenantURL()).Warn("Tenant URL change takes effect after restart")
		}
		logrus.Info("Configuration reloaded")
	})
	if err := reloader.Start(); err != nil {
		logrus.WithError(err).Warn("Config reload disabled")
		return nil
	}
	return reloader
}
