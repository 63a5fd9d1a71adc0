// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"

	// Media attributes
	MediaOpKey         = "media.op"
	MediaContainerKey  = "media.container"
	MediaResolutionKey = "media.resolution"
	MediaClipsKey      = "media.clips"

	// Subtitle attributes
	SubtitleIDKey     = "subtitle.id"
	SubtitleOffsetKey = "subtitle.offset_seconds"
	SubtitleCuesKey   = "subtitle.cues"

	// Job attributes
	JobIDKey       = "job.id"
	JobStatusKey   = "job.status"
	JobAttemptsKey = "job.attempts"

	UpstreamKey = "upstream.name"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// MediaAttributes describes an ffmpeg invocation. Empty values are omitted.
func MediaAttributes(op, container, resolution string, clips int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(MediaOpKey, op)}
	if container != "" {
		attrs = append(attrs, attribute.String(MediaContainerKey, container))
	}
	if resolution != "" {
		attrs = append(attrs, attribute.String(MediaResolutionKey, resolution))
	}
	if clips > 0 {
		attrs = append(attrs, attribute.Int(MediaClipsKey, clips))
	}
	return attrs
}

// SubtitleAttributes describes a subtitle retiming.
func SubtitleAttributes(id string, offsetSeconds float64, cues int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(SubtitleIDKey, id),
		attribute.Float64(SubtitleOffsetKey, offsetSeconds),
		attribute.Int(SubtitleCuesKey, cues),
	}
}

// JobAttributes describes a download job.
func JobAttributes(id, status string, attempts int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(JobIDKey, id),
		attribute.String(JobStatusKey, status),
		attribute.Int(JobAttemptsKey, attempts),
	}
}

// UpstreamAttributes names the remote API behind a span.
func UpstreamAttributes(name string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String(UpstreamKey, name)}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
