// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	// ListenAddr is the address to listen on (e.g., ":8088")
	ListenAddr string

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of the response.
	// Zero disables the timeout so long transcodes can stream their result.
	WriteTimeout time.Duration

	// IdleTimeout is the maximum amount of time to wait for the next request
	IdleTimeout time.Duration

	// MaxHeaderBytes controls the maximum number of bytes the server will read parsing the request header's keys and values
	MaxHeaderBytes int

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown
	ShutdownTimeout time.Duration
}

// ParseServerConfigForApp derives the runtime server settings from the
// resolved application config.
func ParseServerConfigForApp(cfg AppConfig) ServerConfig {
	def := Defaults().Server
	out := ServerConfig{
		ListenAddr:      cfg.Server.ListenAddr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		MaxHeaderBytes:  cfg.Server.MaxHeaderBytes,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	if out.ListenAddr == "" {
		out.ListenAddr = def.ListenAddr
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = def.ReadTimeout
	}
	if out.WriteTimeout < 0 {
		out.WriteTimeout = 0
	}
	if out.IdleTimeout <= 0 {
		out.IdleTimeout = def.IdleTimeout
	}
	if out.MaxHeaderBytes <= 0 {
		out.MaxHeaderBytes = def.MaxHeaderBytes
	}
	if out.ShutdownTimeout <= 0 {
		out.ShutdownTimeout = def.ShutdownTimeout
	}
	return out
}
