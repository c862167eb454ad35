package kafka

import (
	"fmt"
	"strings"
)

// WorkUnit is one bounded unit of detection work sent to a worker.
type WorkUnit struct {
	CorrelationID string `json:"correlation_id"`
	JobID         int64  `json:"job_id"`
	MediaID       int64  `json:"media_id"`
	TaskIdx       int    `json:"task_idx"`
	ActionIdx     int    `json:"action_idx"`
	Priority      int    `json:"priority"`

	MediaURI  string `json:"media_uri"`
	MediaType string `json:"media_type"`

	Props map[string]string `json:"props"`

	StartFrame int `json:"start_frame"`
	StopFrame  int `json:"stop_frame"`
	StartTime  int `json:"start_time"`
	StopTime   int `json:"stop_time"`

	FeedForward []FeedForwardDetection `json:"feed_forward,omitempty"`
}

// FeedForwardDetection is a prior-task detection shipped with a work unit
// so the worker can restrict processing to it.
type FeedForwardDetection struct {
	X           int               `json:"x"`
	Y           int               `json:"y"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	Confidence  float64           `json:"confidence"`
	FrameOffset int               `json:"frame_offset"`
	TimeOffset  int               `json:"time_offset"`
	Props       map[string]string `json:"props,omitempty"`
}

// DetectionResult is one detection reported by a worker.
type DetectionResult struct {
	X           int               `json:"x"`
	Y           int               `json:"y"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	Confidence  float64           `json:"confidence"`
	FrameOffset int               `json:"frame_offset"`
	TimeOffset  int               `json:"time_offset"`
	Props       map[string]string `json:"props,omitempty"`
}

// TrackResult is one track reported by a worker for a video work unit.
type TrackResult struct {
	StartFrame int               `json:"start_frame"`
	StopFrame  int               `json:"stop_frame"`
	StartTime  int               `json:"start_time"`
	StopTime   int               `json:"stop_time"`
	Confidence float64           `json:"confidence"`
	Props      map[string]string `json:"props,omitempty"`
	Detections []DetectionResult `json:"detections"`
}

// VideoPayload carries a video work unit's results.
type VideoPayload struct {
	StartFrame int           `json:"start_frame"`
	StopFrame  int           `json:"stop_frame"`
	Tracks     []TrackResult `json:"tracks"`
}

// AudioPayload carries an audio work unit's results.
type AudioPayload struct {
	StartTime int           `json:"start_time"`
	StopTime  int           `json:"stop_time"`
	Tracks    []TrackResult `json:"tracks"`
}

// ImagePayload carries an image work unit's results.
type ImagePayload struct {
	Detections []DetectionResult `json:"detections"`
}

// GenericPayload carries results for generic media.
type GenericPayload struct {
	Tracks []TrackResult `json:"tracks"`
}

// DetectionResponse is one completed work unit coming back from a worker.
// Exactly one payload field is set.
type DetectionResponse struct {
	CorrelationID string `json:"correlation_id"`
	JobID         int64  `json:"job_id"`
	MediaID       int64  `json:"media_id"`
	TaskIdx       int    `json:"task_idx"`
	ActionIdx     int    `json:"action_idx"`

	ProcessingTimeMs int64 `json:"processing_time_ms"`

	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	Video   *VideoPayload   `json:"video,omitempty"`
	Audio   *AudioPayload   `json:"audio,omitempty"`
	Image   *ImagePayload   `json:"image,omitempty"`
	Generic *GenericPayload `json:"generic,omitempty"`
}

// ErrorCodeCancelled marks a worker result discarded due to job cancellation.
// It is informational, not a processing failure.
const ErrorCodeCancelled = "CANCELLED"

// CancelNotice withdraws one job's pending work units. Workers answer each
// not-yet-processed unit of the job with a CANCELLED response instead of
// running it; units of other jobs are untouched.
type CancelNotice struct {
	JobID       int64 `json:"job_id"`
	CancelledAt int64 `json:"cancelled_at"`
}

// CancelTopic carries job cancellation notices to workers.
const CancelTopic = "JOB_CANCELLATION"

// DestinationTopic derives the request topic for an algorithm and action type.
func DestinationTopic(actionType, algorithm string) string {
	return fmt.Sprintf("%s_%s_REQUEST", strings.ToUpper(actionType), strings.ToUpper(algorithm))
}

// ResponseTopic is where workers publish completed work units.
const ResponseTopic = "DETECTION_RESPONSE"
