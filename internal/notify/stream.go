package notify

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	pkgerrors "github.com/cardd-labs/cardd-backend/pkg/errors"
	"github.com/cardd-labs/cardd-backend/pkg/logger"
)

type subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
	NotifyChannel(userID string) string
}

// Streamer bridges the per-user notification channel into a Go channel the
// live event endpoint can range over.
type Streamer struct {
	sub  subscriber
	logg *logger.Logger
}

// NewStreamer wires the subscription side of the notification bus.
func NewStreamer(sub subscriber, logg *logger.Logger) (*Streamer, error) {
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notify subscriber required")
	}
	return &Streamer{sub: sub, logg: logg}, nil
}

// Stream subscribes to userID's channel and decodes messages until ctx is
// cancelled. The returned cancel func must be called to release the
// subscription; the message channel closes once it is.
func (s *Streamer) Stream(ctx context.Context, userID uuid.UUID) (<-chan Message, func(), error) {
	pubsub := s.sub.Subscribe(ctx, s.sub.NotifyChannel(userID.String()))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "subscribe notifications")
	}

	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				var msg Message
				if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
					if s.logg != nil {
						s.logg.Error(ctx, "notify.decode_failed", err)
					}
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	cancel := func() { _ = pubsub.Close() }
	return out, cancel, nil
}
