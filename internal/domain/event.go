package domain

import (
	"socialpulse/pkg/wire"

	"github.com/samber/lo"
)

// Event is a domain action ready for fan-out: who caused it, who may see it, and the
// frame pushed to every live recipient. It is never retried.
type Event struct {
	Type         string
	ActorID      uint
	RecipientIDs []uint
	Frame        wire.Event
}

func NewEvent(actorID uint, recipientIDs []uint, frame wire.Event) Event {
	return Event{
		Type:         frame.EventType(),
		ActorID:      actorID,
		RecipientIDs: recipientIDs,
		Frame:        frame,
	}
}

// Recipients returns the distinct recipients, never including the actor.
func (e Event) Recipients() []uint {
	return lo.Filter(lo.Uniq(e.RecipientIDs), func(id uint, _ int) bool {
		return id != 0 && id != e.ActorID
	})
}
