// Package telemetry records detection outcomes for offline analysis.
// Emission is fire-and-forget: a broken emitter can never delay or fail a
// detection.
package telemetry

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"slashsense/internal/logging"
	"slashsense/internal/types"
)

// previewLimit bounds how much raw input is retained per event. Utterances
// can contain anything the user typed; keep only enough to debug matching.
const previewLimit = 120

// Event is one recorded detection outcome.
type Event struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	InputPreview string    `json:"input_preview"`

	CommandID  string       `json:"command_id,omitempty"`
	Confidence float64      `json:"confidence"`
	Method     types.Method `json:"method,omitempty"`
	Action     types.Action `json:"action"`

	// TierLatencies maps tier index -> milliseconds for each tier that ran.
	TierLatencies  map[int]float64 `json:"tier_latencies,omitempty"`
	TotalLatencyMs float64         `json:"total_latency_ms"`
}

// NewEvent builds an event from a finished decision.
func NewEvent(decision types.DetectionDecision, tierLatencies map[int]float64, total time.Duration) Event {
	ev := Event{
		ID:             uuid.New().String(),
		Timestamp:      time.Now().UTC(),
		InputPreview:   truncate(decision.RawInput, previewLimit),
		Action:         decision.Action,
		TierLatencies:  tierLatencies,
		TotalLatencyMs: float64(total.Microseconds()) / 1000.0,
	}
	if decision.Chosen != nil {
		ev.CommandID = decision.Chosen.CommandID
		ev.Confidence = decision.Chosen.Confidence
		ev.Method = decision.Chosen.Method
	}
	return ev
}

// truncate cuts at a rune boundary so a preview never ends mid-rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Emitter receives detection events. Implementations must not block the
// caller for long and must swallow their own failures.
type Emitter interface {
	Emit(ev Event)
	Close() error
}

// =============================================================================
// BASIC EMITTERS
// =============================================================================

// NopEmitter discards everything. Used when telemetry is disabled.
type NopEmitter struct{}

func (NopEmitter) Emit(Event)   {}
func (NopEmitter) Close() error { return nil }

// LogEmitter writes events to the telemetry log category.
type LogEmitter struct{}

func (LogEmitter) Emit(ev Event) {
	logging.Telemetry("detection %s: cmd=%s conf=%.3f method=%s action=%s total=%.1fms",
		ev.ID, ev.CommandID, ev.Confidence, ev.Method, ev.Action, ev.TotalLatencyMs)
}

func (LogEmitter) Close() error { return nil }

// MultiEmitter fans one event out to several emitters.
type MultiEmitter []Emitter

func (m MultiEmitter) Emit(ev Event) {
	for _, e := range m {
		e.Emit(ev)
	}
}

func (m MultiEmitter) Close() error {
	var first error
	for _, e := range m {
		if err := e.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
