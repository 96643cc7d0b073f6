// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package seneschal

import (
	"os"
	"strings"

	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/osext"
	"github.com/spf13/cobra"

	"github.com/sapcc/seneschal/internal/dbconn"
)

var (
	// EnvPrefix is the prefix for the environment variables that carry the
	// connection details of the master connection.
	EnvPrefix string

	// LogLevel is the requested log level ("debug" enables debug logging).
	LogLevel string
)

// AddGlobalFlags mounts the flags shared by all subcommands onto the root
// command.
func AddGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&EnvPrefix, "env-prefix", "PGO_", "Prefix for the environment variables with the connection details.")
	cmd.PersistentFlags().StringVar(&LogLevel, "log-level", "INFO", "Log level.")
}

// ApplyLogLevel configures logging according to the --log-level flag.
func ApplyLogLevel() {
	switch strings.ToLower(LogLevel) {
	case "debug":
		logg.ShowDebug = true
	case "info", "warning", "error":
		logg.ShowDebug = false
	default:
		logg.Error("unknown log level %q, using INFO", LogLevel)
	}
}

// ParseConnectionConfig reads the master connection configuration from the
// environment variables selected by the --env-prefix flag. Unset variables
// fall back to the usual libpq defaults.
func ParseConnectionConfig() dbconn.Config {
	username := os.Getenv(EnvPrefix + "USER")
	if username == "" {
		username = os.Getenv(EnvPrefix + "USERNAME")
	}
	return dbconn.Config{
		Host:     osext.GetenvOrDefault(EnvPrefix+"HOST", "localhost"),
		Port:     osext.GetenvOrDefault(EnvPrefix+"PORT", "5432"),
		Database: osext.GetenvOrDefault(EnvPrefix+"DATABASE", "postgres"),
		Username: username,
		Password: os.Getenv(EnvPrefix + "PASSWORD"),
	}
}
