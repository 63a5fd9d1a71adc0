// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestContextWithRequestID(t *testing.T) {
	tests := []struct {
		name      string
		ctx       context.Context
		requestID string
		want      string
	}{
		{
			name:      "nil context",
			ctx:       nil,
			requestID: "test-id-123",
			want:      "test-id-123",
		},
		{
			name:      "background context",
			ctx:       context.Background(),
			requestID: "req-456",
			want:      "req-456",
		},
		{
			name:      "empty request ID",
			ctx:       context.Background(),
			requestID: "",
			want:      "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := ContextWithRequestID(tt.ctx, tt.requestID)
			if got := RequestIDFromContext(ctx); got != tt.want {
				t.Errorf("RequestIDFromContext() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWithContext_AddsCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithJobID(ctx, "job-9")

	l := WithContext(ctx, logger)
	l.Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode log line: %v", err)
	}
	if entry[FieldRequestID] != "req-1" {
		t.Errorf("expected request_id req-1, got %v", entry[FieldRequestID])
	}
	if entry[FieldJobID] != "job-9" {
		t.Errorf("expected job_id job-9, got %v", entry[FieldJobID])
	}
}

func TestWithContext_NoFieldsReturnsSameLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	l := WithContext(context.Background(), logger)
	l.Info().Msg("plain")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode log line: %v", err)
	}
	if _, ok := entry[FieldRequestID]; ok {
		t.Error("did not expect request_id on a plain context")
	}
}

func TestConfigure_AttachesServiceAndVersion(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "info", Output: &buf, Service: "cutroom-test", Version: "v0.0.1"})
	t.Cleanup(func() { Configure(Config{}) })

	logger := WithComponent("unit")
	logger.Info().Msg("configured")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode log line: %v", err)
	}
	if entry["service"] != "cutroom-test" {
		t.Errorf("expected service cutroom-test, got %v", entry["service"])
	}
	if entry["version"] != "v0.0.1" {
		t.Errorf("expected version v0.0.1, got %v", entry["version"])
	}
	if entry[FieldComponent] != "unit" {
		t.Errorf("expected component unit, got %v", entry[FieldComponent])
	}
}
