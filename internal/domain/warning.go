package domain

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Message sources recorded on a Warning.
const (
	MessageSourceLLM      = "llm"
	MessageSourceFallback = "fallback"
)

const noHazardData = "No hazard data available."

// MessageGenerator writes a warning text for a hazard near the driver.
type MessageGenerator interface {
	GenerateWarning(ctx context.Context, category, address, name string) (string, error)
}

// Synthesizer renders text to an audio file at outPath.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, outPath string) error
}

// Warning is the outcome of evaluating one query point.
type Warning struct {
	Point         Geo            `json:"point"`
	Found         bool           `json:"found"`
	Actionable    bool           `json:"actionable"`
	Nearest       *NearestResult `json:"nearest,omitempty"`
	Message       string         `json:"message,omitempty"`
	MessageSource string         `json:"message_source,omitempty"`
	AudioPath     string         `json:"audio_path,omitempty"`
	DeepLink      string         `json:"deep_link,omitempty"`
	Notice        string         `json:"notice,omitempty"`
	IssuedAt      time.Time      `json:"issued_at"`
}

// Session carries the caller's last evaluation so replays of the same point
// reuse it instead of resolving and generating again.
type Session struct {
	LastPoint   *Geo
	LastWarning *Warning
}

// Replay returns the last warning when point equals the last evaluated point.
func (s Session) Replay(point Geo) (Warning, bool) {
	if s.LastPoint == nil || s.LastWarning == nil || *s.LastPoint != point {
		return Warning{}, false
	}
	return *s.LastWarning, true
}

// Record returns a session whose last evaluation is (point, w).
func (s Session) Record(point Geo, w Warning) Session {
	p := point
	cp := w
	return Session{LastPoint: &p, LastWarning: &cp}
}

// WazeDeepLink returns a navigation link to loc.
func WazeDeepLink(loc Geo) string {
	return "https://waze.com/ul?ll=" +
		strconv.FormatFloat(loc.Lat, 'f', -1, 64) + "," +
		strconv.FormatFloat(loc.Lon, 'f', -1, 64) + "&navigate=yes"
}

// FallbackMessage is the canned warning used when no generated text is available.
func FallbackMessage(category, address, name string) string {
	return fmt.Sprintf("Caution! You are approaching a %s at %s, operated by %s.", category, address, name)
}

// SafeNotice is shown when the nearest hazard is beyond the threshold.
func SafeNotice(thresholdMeters float64) string {
	return fmt.Sprintf("No hazards within %s meters.", strconv.FormatFloat(thresholdMeters, 'f', -1, 64))
}

// NoDataNotice is shown when no collection holds a located hazard.
func NoDataNotice() string {
	return noHazardData
}

// ComposeMessage asks gen for a warning text about result. If gen is nil,
// fails, or returns blank text, the fallback message is returned instead
// (graceful degradation).
func ComposeMessage(ctx context.Context, gen MessageGenerator, result NearestResult, logger *slog.Logger) (string, string) {
	fallback := FallbackMessage(result.Category, result.Address, result.Name)
	if gen == nil {
		return fallback, MessageSourceFallback
	}

	text, err := gen.GenerateWarning(ctx, result.Category, result.Address, result.Name)
	if err != nil {
		logger.Warn("warning generation failed, using fallback",
			"category", result.Category,
			"address", result.Address,
			"error", err,
		)
		return fallback, MessageSourceFallback
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fallback, MessageSourceFallback
	}
	return text, MessageSourceLLM
}
