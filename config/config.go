// Package config loads process-level settings from the environment.
//
// Flags in cmd/server override these values; the service mapping document
// itself is not process config and lives in the settings store (see factory).
package config

import (
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// App is the process configuration.
type App struct {
	Port           int    `envconfig:"PORT" default:"8080"`
	DBPath         string `envconfig:"DB_PATH" default:"bridge.db"`
	LogMode        string `envconfig:"LOG_MODE" default:"dev"`
	SettingsFile   string `envconfig:"SETTINGS_FILE"`
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:8080"`
}

// Load reads BRIDGE_* variables.
func Load() (App, error) {
	var c App
	err := envconfig.Process("bridge", &c)
	return c, err
}

// Origins splits AllowedOrigins on commas, dropping blanks.
func (a App) Origins() []string {
	var out []string
	for _, o := range strings.Split(a.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
