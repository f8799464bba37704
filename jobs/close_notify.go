package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// CloseNotifier handles TaskPeriodCloseNotify tasks. Delivery is a
// structured log line today; the payload already carries everything a
// mail or chat integration would need.
type CloseNotifier struct {
	logger  *slog.Logger
	printer *message.Printer
}

func NewCloseNotifier(logger *slog.Logger) *CloseNotifier {
	return &CloseNotifier{logger: logger, printer: message.NewPrinter(language.English)}
}

// Handle processes a close notification.
func (n *CloseNotifier) Handle(ctx context.Context, t *asynq.Task) error {
	var payload PeriodCloseNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	formatted := payload.TotalValue
	if total, err := decimal.NewFromString(payload.TotalValue); err == nil {
		formatted = n.printer.Sprintf("%.2f", total.InexactFloat64())
	}
	n.logger.Info("period closed",
		slog.Int64("period_id", payload.PeriodID),
		slog.String("total_value", formatted),
		slog.Time("closed_at", payload.ClosedAt),
	)
	return nil
}
