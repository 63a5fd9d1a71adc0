// SPDX-License-Identifier: MIT

package daemon

import (
	"net/http"

	"github.com/cutroom/cutroom/internal/config"
	"github.com/rs/zerolog"
)

// Deps contains dependencies required by the daemon Manager.
type Deps struct {
	// Logger is the structured logger for the daemon
	Logger zerolog.Logger

	// Config is the resolved application config at startup
	Config config.AppConfig

	// APIHandler serves the REST API
	APIHandler http.Handler

	// MetricsHandler serves Prometheus metrics on MetricsAddr (optional)
	MetricsHandler http.Handler
	MetricsAddr    string
}

// Validate checks if the dependencies are valid.
func (d *Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	if d.APIHandler == nil {
		return ErrMissingAPIHandler
	}
	return nil
}
