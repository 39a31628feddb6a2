// Command maskctl submits masked garment edits to the tenant service from
// the terminal and browses the resulting task history.
package main

import (
	"fmt"
	"os"

	"garment-studio/internal/config"
	"garment-studio/internal/logging"
	"garment-studio/internal/taskstore"
	"garment-studio/internal/taskstore/backends"
	"garment-studio/internal/tenant"
	"garment-studio/internal/version"
	"garment-studio/pkg/ui"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	tokenFlag  string
	logLevel   string

	cfg    *config.Config
	tokens *tenant.FileTokenStore
)

var rootCmd = &cobra.Command{
	Use:   "maskctl",
	Short: "Submit masked garment edits and inspect their results",
	Long: ui.StyleTitle.Render("maskctl") + " - garment edit submission tool\n\n" +
		"Flattens each image with its mask, sends them with a combined prompt\n" +
		"to the tenant service and follows the task until it finishes.",
	Version:           version.String(),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initialize,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/garment-studio/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "bearer token for this invocation only")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

func initialize(cmd *cobra.Command, args []string) error {
	if err := config.LoadEnv(); err != nil {
		return err
	}
	if configPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		configPath = p
	}
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = c
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := logging.Setup(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format}); err != nil {
		return err
	}

	dir, err := config.Dir()
	if err != nil {
		return err
	}
	tokens = tenant.NewFileTokenStore(dir, config.EnvToken)
	logrus.WithField("config", configPath).Debug("Configuration loaded")
	return nil
}

func newClient() *tenant.Client {
	var src tenant.TokenSource = tokens
	if tokenFlag != "" {
		src = tenant.StaticToken(tokenFlag)
	}
	return tenant.NewClient(cfg.TenantURL(), src, tenant.WithTimeout(cfg.Tenant.Timeout))
}

func openStore() (taskstore.Store, error) {
	return backends.Open(cfg)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.FormatError(userError(err)))
		os.Exit(1)
	}
}
