package inbox

import (
	"fmt"
	"strconv"
	"time"

	"socialpulse/pkg/wire"
)

// Record is one notification as the UI shows it.
type Record struct {
	// ID is "{type}-{sourceId}-{unixMillis}" for pushed records and the decimal
	// server id once the record has been seen in a poll.
	ID          string
	ServerID    uint
	Type        string
	ReferenceID uint
	Sender      wire.Sender
	Content     string
	IsRead      bool
	CreatedAt   time.Time

	// claimed marks a server record that already absorbed a pushed record.
	claimed bool
}

// Pushed reports whether the record came from the socket and has not yet been
// replaced by its server copy.
func (r Record) Pushed() bool { return r.ServerID == 0 }

type dedupKey struct {
	typ      string
	refID    uint
	senderID uint
}

func (r Record) key() dedupKey {
	return dedupKey{typ: r.Type, refID: r.ReferenceID, senderID: r.Sender.ID}
}

func fromServer(n wire.StoredNotification) Record {
	return Record{
		ID:          strconv.FormatUint(uint64(n.ID), 10),
		ServerID:    n.ID,
		Type:        n.Type,
		ReferenceID: n.ReferenceID,
		Sender:      n.Sender,
		Content:     n.Content,
		IsRead:      n.IsRead,
		CreatedAt:   n.CreatedAt,
	}
}

func pushID(typ string, sourceID uint, at time.Time) string {
	return fmt.Sprintf("%s-%d-%d", typ, sourceID, at.UnixMilli())
}

// sourceID picks the most specific id the frame carries.
func sourceID(e wire.Event, d wire.Descriptor) uint {
	switch f := e.(type) {
	case wire.ChatMessage:
		if f.ID != 0 {
			return f.ID
		}
	case wire.GroupActivity:
		switch {
		case f.CommentID != 0:
			return f.CommentID
		case f.EventID != 0:
			return f.EventID
		case f.PostID != 0:
			return f.PostID
		}
	}
	return d.ReferenceID
}
