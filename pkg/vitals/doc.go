// Package vitals observes web-vital performance signals and reports them as
// telemetry events.
//
// The host platform feeds raw observations through a Source; the Observer
// classifies each value against the standard thresholds and emits one
// web_vital event per qualifying observation. Layout-shift observations are
// accumulated into a cumulative score, excluding shifts caused by recent
// user input, and the shift rating classifies that cumulative score.
package vitals
