package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogDispatcher only logs prompts; used in development.
type LogDispatcher struct {
	logger *zap.Logger
}

func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

var _ Dispatcher = (*LogDispatcher)(nil)

func (d *LogDispatcher) Channel() string { return "log" }

func (d *LogDispatcher) Dispatch(_ context.Context, p Payload) error {
	codes := make([]string, 0, len(p.Actions))
	for _, a := range p.Actions {
		codes = append(codes, string(a.Code))
	}
	d.logger.Info("Checkout prompt",
		zap.String("worker_handle", p.WorkerHandle),
		zap.String("reminder_id", p.ReminderID),
		zap.String("text", p.Text),
		zap.Strings("actions", codes),
	)
	return nil
}
