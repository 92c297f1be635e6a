package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cardd-labs/cardd-backend/api/responses"
	"github.com/cardd-labs/cardd-backend/internal/notify"
	pkgerrors "github.com/cardd-labs/cardd-backend/pkg/errors"
	"github.com/cardd-labs/cardd-backend/pkg/logger"
)

// UserEvents streams a user's dispatch notifications over server-sent events.
// The connection is the live session: messages published while it is open are
// delivered, everything else is dropped upstream.
func UserEvents(streamer *notify.Streamer, heartbeat time.Duration, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if streamer == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notification stream unavailable"))
			return
		}

		userID, err := parseUUIDParam(r, "userId", "user id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported"))
			return
		}

		messages, cancel, err := streamer.Stream(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer cancel()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		if heartbeat <= 0 {
			heartbeat = 25 * time.Second
		}
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				fmt.Fprint(w, ": ping\n\n")
				flusher.Flush()
			case msg, open := <-messages:
				if !open {
					return
				}
				payload, err := json.Marshal(msg)
				if err != nil {
					if logg != nil {
						logg.Error(r.Context(), "events.encode_failed", err)
					}
					continue
				}
				fmt.Fprintf(w, "event: notification\ndata: %s\n\n", payload)
				flusher.Flush()
			}
		}
	}
}
