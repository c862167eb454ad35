package models

// Property keys shared across the resolution cascade, segmenting, response
// processing and post-processing.
const (
	PropFrameInterval = "FRAME_INTERVAL"
	PropFrameRateCap  = "FRAME_RATE_CAP"

	PropTargetSegmentLength    = "TARGET_SEGMENT_LENGTH"
	PropMinSegmentLength       = "MIN_SEGMENT_LENGTH"
	PropVfrTargetSegmentLength = "VFR_TARGET_SEGMENT_LENGTH"
	PropVfrMinSegmentLength    = "VFR_MIN_SEGMENT_LENGTH"
	PropMinGapBetweenSegments  = "MIN_GAP_BETWEEN_SEGMENTS"

	PropQualityThreshold = "QUALITY_THRESHOLD"
	PropQualitySelection = "QUALITY_SELECTION_PROPERTY"
	PropExemplarPolicy   = "EXEMPLAR_POLICY"

	// ConfidenceSelector selects raw confidence instead of a named property.
	ConfidenceSelector = "CONFIDENCE"

	PropMovingLabelsEnabled = "MOVING_TRACK_LABELS_ENABLED"
	PropMovingTracksOnly    = "MOVING_TRACKS_ONLY"
	PropMovingMaxIou        = "MOVING_TRACK_MAX_IOU"
	PropMovingMinDetections = "MOVING_TRACK_MIN_DETECTIONS"
	PropMoving              = "MOVING"

	PropRollUpFile = "ROLL_UP_FILE"

	PropDerivativeMediaTempPath = "DERIVATIVE_MEDIA_TEMP_PATH"
	PropDerivativeMediaID       = "DERIVATIVE_MEDIA_ID"
)

// Exemplar policy names.
const (
	ExemplarFirst      = "FIRST"
	ExemplarLast       = "LAST"
	ExemplarMiddle     = "MIDDLE"
	ExemplarMaxQuality = "MAX_QUALITY"
)
