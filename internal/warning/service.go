// Package warning turns a query point into a driver warning: nearest hazard,
// proximity gate, message text, optional audio and a navigation link.
package warning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/hazard-proximity-service/internal/domain"
	"github.com/couchcryptid/hazard-proximity-service/internal/observability"
)

// Resolution outcomes recorded in metrics.
const (
	outcomeActionable = "actionable"
	outcomeDistant    = "distant"
	outcomeNone       = "none"
	outcomeInvalid    = "invalid"
)

// Finder resolves the nearest hazard to a point.
type Finder interface {
	Nearest(point domain.Geo) (domain.NearestResult, bool, error)
}

// Options controls per-request extras.
type Options struct {
	// Audio requests a spoken rendition of an actionable warning.
	Audio bool
	// AudioPath overrides the generated output file name.
	AudioPath string
}

// Service evaluates query points. Generator and Synthesizer are optional.
type Service struct {
	finder      Finder
	gate        domain.Gate
	generator   domain.MessageGenerator
	synthesizer domain.Synthesizer
	audioDir    string
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewService creates a warning service.
func NewService(finder Finder, gate domain.Gate, generator domain.MessageGenerator, synthesizer domain.Synthesizer, audioDir string, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		finder:      finder,
		gate:        gate,
		generator:   generator,
		synthesizer: synthesizer,
		audioDir:    audioDir,
		metrics:     metrics,
		logger:      logger,
	}
}

// Gate returns the proximity gate in use.
func (s *Service) Gate() domain.Gate {
	return s.gate
}

// Nearest resolves point and reports whether the result is actionable.
func (s *Service) Nearest(point domain.Geo) (domain.NearestResult, bool, bool, error) {
	start := time.Now()
	res, ok, err := s.finder.Nearest(point)
	s.metrics.ResolutionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			s.metrics.Resolutions.WithLabelValues(outcomeInvalid).Inc()
		}
		return domain.NearestResult{}, false, false, err
	}

	actionable := s.gate.Actionable(res, ok)
	switch {
	case !ok:
		s.metrics.Resolutions.WithLabelValues(outcomeNone).Inc()
	case actionable:
		s.metrics.Resolutions.WithLabelValues(outcomeActionable).Inc()
	default:
		s.metrics.Resolutions.WithLabelValues(outcomeDistant).Inc()
	}
	return res, ok, actionable, nil
}

// Evaluate produces the warning for point. A point equal to the session's last
// point replays the recorded warning without resolving or generating again.
// The returned session records this evaluation.
func (s *Service) Evaluate(ctx context.Context, session domain.Session, point domain.Geo, opts Options) (domain.Warning, domain.Session, error) {
	if err := point.Validate(); err != nil {
		s.metrics.Resolutions.WithLabelValues(outcomeInvalid).Inc()
		return domain.Warning{}, session, err
	}
	if w, ok := session.Replay(point); ok {
		s.logger.Debug("replaying last warning", "point", point.String())
		return w, session, nil
	}

	res, found, actionable, err := s.Nearest(point)
	if err != nil {
		return domain.Warning{}, session, err
	}

	w := domain.Warning{
		Point:      point,
		Found:      found,
		Actionable: actionable,
		IssuedAt:   domain.Now(),
	}
	switch {
	case !found:
		w.Notice = domain.NoDataNotice()
	case !actionable:
		r := res
		w.Nearest = &r
		w.Notice = domain.SafeNotice(s.gate.ThresholdMeters)
	default:
		r := res
		w.Nearest = &r
		s.compose(ctx, &w, opts)
	}

	return w, session.Record(point, w), nil
}

func (s *Service) compose(ctx context.Context, w *domain.Warning, opts Options) {
	res := *w.Nearest
	w.Message, w.MessageSource = domain.ComposeMessage(ctx, s.generator, res, s.logger)
	w.DeepLink = domain.WazeDeepLink(res.Location)
	s.metrics.WarningMessages.WithLabelValues(w.MessageSource).Inc()
	s.metrics.ActionableAlerts.WithLabelValues(res.Category).Inc()

	if !opts.Audio || s.synthesizer == nil {
		return
	}
	path := opts.AudioPath
	if path == "" {
		path = filepath.Join(s.audioDir, fmt.Sprintf("warning-%s.mp3", uuid.NewString()))
	}
	if err := s.synthesizer.Synthesize(ctx, w.Message, path); err != nil {
		s.metrics.SpeechFailures.Inc()
		s.logger.Warn("speech synthesis failed, warning has no audio",
			"category", res.Category,
			"error", err,
		)
		return
	}
	w.AudioPath = path
}
