package realtime

import (
	"context"
	"log/slog"
)

// Router maps a logical audience to transport channels and publishes events
// onto each. It holds no state between calls; delivery is best-effort with no
// acknowledgement and no retry queue. A failed publish is logged and dropped
// because the durable store already holds the truth and polling clients will
// catch up.
type Router struct {
	transport Transport
	logger    *slog.Logger
}

func NewRouter(transport Transport, logger *slog.Logger) *Router {
	return &Router{transport: transport, logger: logger}
}

// Publish fans the event out to every channel the audience resolves to.
func (r *Router) Publish(ctx context.Context, audience Audience, event Event) {
	payload, err := event.Encode()
	if err != nil {
		r.logger.Error("failed to encode event", "kind", event.Kind, "error", err)
		return
	}

	for _, channel := range audience.Channels() {
		if err := r.transport.Publish(ctx, channel, payload); err != nil {
			r.logger.Warn("publish failed",
				"channel", channel,
				"kind", event.Kind,
				"error", err)
		}
	}
}
