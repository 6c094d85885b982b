package telemetry

// Viewport holds the host display dimensions at event time
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// EventContext carries ambient environment details stamped onto every event
type EventContext struct {
	URL       string   `json:"url,omitempty"`
	UserAgent string   `json:"user_agent,omitempty"`
	Viewport  Viewport `json:"viewport"`
	Referrer  string   `json:"referrer,omitempty"`
}

// Event is a timestamped record of one observed action
type Event struct {
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties"`
	UserID     *int64         `json:"user_id,omitempty"`
	SessionID  string         `json:"session_id"`
	Timestamp  int64          `json:"timestamp"` // milliseconds since epoch
	Context    *EventContext  `json:"context,omitempty"`
}

// Reserved event names emitted by the pipeline itself
const (
	EventSessionEnd             = "session_end"
	EventUncaughtError          = "uncaught_error"
	EventUnhandledRejection     = "unhandled_rejection"
	EventApplicationError       = "application_error"
	EventWebVital               = "web_vital"
	EventPerformanceMeasurement = "performance_measurement"
	EventEnrollment             = "ab_test_enrollment"
	EventConversion             = "ab_test_conversion"
)

// cloneProperties makes a shallow copy so a caller mutating its map after
// Track returns cannot race with asynchronous delivery.
func cloneProperties(properties map[string]any) map[string]any {
	out := make(map[string]any, len(properties))
	for k, v := range properties {
		out[k] = v
	}
	return out
}
