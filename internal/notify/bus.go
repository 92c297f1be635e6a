package notify

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	pkgerrors "github.com/cardd-labs/cardd-backend/pkg/errors"
	"github.com/cardd-labs/cardd-backend/pkg/logger"
	"github.com/cardd-labs/cardd-backend/pkg/metrics"
)

// Message is the payload pushed to a user's live session.
type Message struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

type publisher interface {
	Publish(ctx context.Context, channel string, payload any) (int64, error)
	NotifyChannel(userID string) string
}

// Bus delivers messages to whichever live client session is subscribed for a
// user. Delivery is fire-and-forget: no session means the message is dropped,
// and a publish failure never propagates to the caller because the state
// transition that triggered the notification has already been committed.
type Bus struct {
	pub     publisher
	logg    *logger.Logger
	metrics *metrics.DispatchMetrics
}

// NewBus wires the notification bus.
func NewBus(pub publisher, logg *logger.Logger, m *metrics.DispatchMetrics) (*Bus, error) {
	if pub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notify publisher required")
	}
	return &Bus{pub: pub, logg: logg, metrics: m}, nil
}

// Notify publishes text to userID's channel. Per-user ordering follows
// publish order; the engine publishes at most once per accepted request.
func (b *Bus) Notify(ctx context.Context, userID uuid.UUID, text string) {
	payload, err := json.Marshal(Message{Message: text, UserID: userID.String()})
	if err != nil {
		// Message is two strings; this only fires on programmer error.
		if b.logg != nil {
			b.logg.Error(ctx, "notify.encode_failed", err)
		}
		return
	}

	receivers, err := b.pub.Publish(ctx, b.pub.NotifyChannel(userID.String()), payload)
	if err != nil {
		if b.logg != nil {
			ctx = b.logg.WithUserID(ctx, userID.String())
			b.logg.Error(ctx, "notify.publish_failed", err)
		}
		b.metrics.NotificationOutcome("error")
		return
	}

	if receivers == 0 {
		if b.logg != nil {
			ctx = b.logg.WithUserID(ctx, userID.String())
			b.logg.Info(ctx, "notify.dropped_no_session")
		}
		b.metrics.NotificationOutcome("dropped")
		return
	}
	b.metrics.NotificationOutcome("delivered")
}
