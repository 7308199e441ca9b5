package ws

import (
	"context"

	"socialpulse/internal/domain"
	"socialpulse/pkg/wire"

	"go.uber.org/zap"
)

// Publisher hands a domain event to whoever is online.
type Publisher interface {
	Publish(ctx context.Context, evt domain.Event) int
}

// Router fans domain events out to the recipients' live sockets. Delivery is at most
// once: a recipient without a socket, or whose socket fails, simply misses the push
// and picks the notification up on its next poll.
type Router struct {
	registry Registry
	log      *zap.Logger
}

func NewRouter(registry Registry, log *zap.Logger) *Router {
	return &Router{registry: registry, log: log.Named("router")}
}

// Publish returns how many sockets accepted the frame.
func (r *Router) Publish(ctx context.Context, evt domain.Event) int {
	recipients := evt.Recipients()
	if len(recipients) == 0 {
		return 0
	}
	data, err := wire.Encode(evt.Frame)
	if err != nil {
		r.log.Error("encode event", zap.String("type", evt.Type), zap.Error(err))
		return 0
	}
	delivered := 0
	for _, userID := range recipients {
		if ctx.Err() != nil {
			break
		}
		conn, ok := r.registry.Lookup(userID)
		if !ok {
			continue
		}
		if err := conn.Send(data); err != nil {
			r.log.Warn("push failed, evicting connection",
				zap.Uint("user_id", userID),
				zap.String("conn_id", conn.ID()),
				zap.String("type", evt.Type),
				zap.Error(err))
			r.registry.Unregister(userID, conn)
			_ = conn.Close(ReasonSendFailed)
			continue
		}
		delivered++
	}
	r.log.Debug("event routed",
		zap.String("type", evt.Type),
		zap.Uint("actor_id", evt.ActorID),
		zap.Int("recipients", len(recipients)),
		zap.Int("delivered", delivered))
	return delivered
}
