package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/ussdflow/internal/config"
	"github.com/aretw0/ussdflow/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "ussdflow",
	Short:         "ussdflow serves multi-turn USSD menus",
	Long:          `ussdflow runs a localized, guarded USSD menu state machine for a custodial wallet, behind a gateway HTTP endpoint.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		applyFlags(cmd, &c)
		if err := c.Validate(); err != nil {
			return err
		}

		l, err := logging.Build(c.Log.Format, c.Log.Level)
		if err != nil {
			return err
		}
		cfg, logger = c, l
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "YAML configuration file")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("log-format", "", "Log format (text, json, pretty)")
	flags.String("store", "", "Session store backend (memory, file, redis)")
	flags.String("redis-addr", "", "Redis address for the redis store")
	flags.String("catalog-dir", "", "Directory holding locales/ to use instead of the embedded catalog")
	flags.StringSlice("languages", nil, "Selectable languages, in menu order")
}

// applyFlags overrides configuration with explicitly set flags.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	str := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	str("log-level", &c.Log.Level)
	str("log-format", &c.Log.Format)
	str("store", &c.Store.Backend)
	str("redis-addr", &c.Store.Redis.Addr)
	str("catalog-dir", &c.CatalogDir)
	if flags.Changed("languages") {
		c.Languages.Enabled, _ = flags.GetStringSlice("languages")
	}
	if flags.Changed("addr") {
		c.HTTP.Addr, _ = flags.GetString("addr")
	}
	if flags.Changed("turn-timeout") {
		c.Session.TurnTimeout, _ = flags.GetDuration("turn-timeout")
	}
}
