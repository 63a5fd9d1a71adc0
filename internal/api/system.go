// SPDX-License-Identifier: MIT

package api

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"

	"github.com/cutroom/cutroom/internal/version"
	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var openAPIDocument []byte

// LoadSpec parses and validates the embedded OpenAPI document.
func LoadSpec(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openAPIDocument)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}
	return doc, nil
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(openAPIDocument)
}

type versionResponse struct {
	version.Info
	APIVersion string `json:"apiVersion"`
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	info := version.Get()
	if s.cfg.Version != "" {
		info.Version = s.cfg.Version
	}
	writeJSON(w, http.StatusOK, versionResponse{Info: info, APIVersion: s.spec.Info.Version})
}
