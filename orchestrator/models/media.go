package models

type MediaType string

const (
	MediaImage   MediaType = "IMAGE"
	MediaVideo   MediaType = "VIDEO"
	MediaAudio   MediaType = "AUDIO"
	MediaGeneric MediaType = "GENERIC"
	MediaUnknown MediaType = "UNKNOWN"
)

// Metadata keys populated by media inspection.
const (
	MetaFPS             = "FPS"
	MetaFrameCount      = "FRAME_COUNT"
	MetaDuration        = "DURATION"
	MetaHasConstantRate = "HAS_CONSTANT_FRAME_RATE"
	MetaFrameWidth      = "FRAME_WIDTH"
	MetaFrameHeight     = "FRAME_HEIGHT"
	MetaMimeType        = "MIME_TYPE"
)

// Media is one input (or derivative) item of a job.
type Media struct {
	ID  int64
	URI string

	Type MediaType

	// MediaProps are per-media property overrides, the highest cascade tier.
	MediaProps map[string]string

	// Metadata holds inspection output such as FPS or frame count.
	Metadata map[string]string

	Failed     bool
	FailureMsg string

	// CreationTask is the task index that spawned this medium; -1 for
	// source media submitted with the job.
	CreationTask int

	// ParentID links derivative media back to its source; 0 for source media.
	ParentID int64
}

// IsDerivative reports whether this medium was spawned mid-pipeline.
func (m *Media) IsDerivative() bool {
	return m.CreationTask >= 0
}

// Fail marks the medium failed with a reason; the first reason wins.
func (m *Media) Fail(msg string) {
	if m.Failed {
		return
	}
	m.Failed = true
	m.FailureMsg = msg
}

// Meta returns a metadata value, or empty string when absent.
func (m *Media) Meta(key string) string {
	if m.Metadata == nil {
		return ""
	}
	return m.Metadata[key]
}
