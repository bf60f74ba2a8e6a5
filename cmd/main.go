package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Settings merged from flags, SPECIESEXPORT_* environment variables and the optional config file.
var settings = viper.New()

var mainCMD = &cobra.Command{
	Use:   "speciesexport",
	Short: "Export interaction records per species",
	Long:  "Reads species index files, groups their record files into chunks and writes one set of output files per species. Interrupted exports resume from the last checkpoint.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		settings.SetEnvPrefix("SPECIESEXPORT")
		settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
		settings.AutomaticEnv()
		if err := settings.BindPFlags(cmd.Flags()); err != nil {
			return errors.Join(errors.New("failed to bind command line flags"), err)
		}

		if configFile, _ := cmd.Flags().GetString("config"); configFile != "" {
			settings.SetConfigFile(configFile)
			if err := settings.ReadInConfig(); err != nil {
				return errors.Join(fmt.Errorf("failed to read config file %s", configFile), err)
			}
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func newLogger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(settings.GetString("log-level"))); err != nil {
		return nil, fmt.Errorf("unsupported log level %q", settings.GetString("log-level"))
	}

	options := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch settings.GetString("log-format") {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, options)
	case "text":
		handler = slog.NewTextHandler(os.Stderr, options)
	default:
		return nil, fmt.Errorf("unsupported log format %q", settings.GetString("log-format"))
	}

	return slog.New(handler).With("runId", uuid.NewString()), nil
}

func init() {
	mainCMD.PersistentFlags().String("config", "", "Configuration file (yaml, json or toml). Flags and environment variables take precedence")
	mainCMD.PersistentFlags().String("log-level", "info", "Log level. Possible values are debug, info, warn, error")
	mainCMD.PersistentFlags().String("log-format", "text", "Log format. Possible values are text, json")

	mainCMD.AddCommand(exportCMD)
	mainCMD.AddCommand(publishCMD)
}

func main() {
	if err := mainCMD.Execute(); err != nil {
		os.Exit(1)
	}
}
