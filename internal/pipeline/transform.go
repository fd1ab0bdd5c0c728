package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/hazard-proximity-service/internal/domain"
	"github.com/couchcryptid/hazard-proximity-service/internal/warning"
)

// Evaluator produces the warning for a single location.
type Evaluator interface {
	Evaluate(ctx context.Context, session domain.Session, point domain.Geo, opts warning.Options) (domain.Warning, domain.Session, error)
}

// AlertTransformer turns driver location reports into hazard alerts. Reports
// that are not near a hazard are handled without output.
type AlertTransformer struct {
	evaluator Evaluator
	logger    *slog.Logger
}

// NewTransformer creates an AlertTransformer.
func NewTransformer(evaluator Evaluator, logger *slog.Logger) *AlertTransformer {
	return &AlertTransformer{
		evaluator: evaluator,
		logger:    logger,
	}
}

func (t *AlertTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, bool, error) {
	loc, err := domain.ParseDriverLocation(raw)
	if err != nil {
		return domain.OutputEvent{}, false, err
	}

	// Each report is evaluated on its own; drivers carry no session here.
	w, _, err := t.evaluator.Evaluate(ctx, domain.Session{}, loc.Point(), warning.Options{})
	if err != nil {
		return domain.OutputEvent{}, false, err
	}
	if !w.Actionable {
		t.logger.Debug("no actionable hazard", "driver_id", loc.DriverID, "notice", w.Notice)
		return domain.OutputEvent{}, false, nil
	}

	alert, err := domain.NewAlert(loc, w)
	if err != nil {
		return domain.OutputEvent{}, false, err
	}
	out, err := domain.SerializeAlert(alert)
	if err != nil {
		return domain.OutputEvent{}, false, err
	}
	return out, true, nil
}
