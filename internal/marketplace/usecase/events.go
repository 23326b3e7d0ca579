package usecase

import (
	"context"
	"time"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/marketplace/domain"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/logger"
	"go.uber.org/zap"
)

// publishEvent emits an event when a publisher is configured. A failed publish
// is logged and otherwise ignored.
func publishEvent(ctx context.Context, pub domain.EventPublisher, log *logger.Logger, subject string, data map[string]interface{}) {
	if pub == nil {
		return
	}
	data["occurred_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	if err := pub.Publish(ctx, subject, data); err != nil {
		log.Warn("Failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}
