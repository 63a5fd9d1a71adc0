// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID  = "request_id"
	FieldJobID      = "job_id"
	FieldUploadID   = "upload_id"
	FieldSubtitleID = "subtitle_id"
	FieldPlaylistID = "playlist_id"
	FieldPlatform   = "platform"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldOp        = "op"

	// Media fields
	FieldContainer = "container"
	FieldCodec     = "codec"
	FieldOffset    = "offset_seconds"
	FieldCues      = "cues"

	// Upstream fields
	FieldUpstream = "upstream"
	FieldStatus   = "status"

	// Path / URL fields
	FieldPath = "path"
	FieldURL  = "url"
)
