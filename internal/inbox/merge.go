package inbox

import (
	"cmp"
	"slices"
	"time"

	"socialpulse/pkg/wire"
)

type candidate struct {
	push   int
	server int
	gap    time.Duration
}

// merge folds a server page into the current records. Each server record replaces
// at most one pushed record with the same dedup key, the one received closest to
// the server's creation time, and only within window. Read state only ever moves
// from unread to read. unsynced lists server ids that are read here but unread on
// the server.
func merge(current []Record, page []wire.StoredNotification, window time.Duration) (out []Record, unsynced []uint) {
	known := make(map[uint]int, len(current))
	var pushed []int
	for i, r := range current {
		if r.Pushed() {
			pushed = append(pushed, i)
		} else {
			known[r.ServerID] = i
		}
	}

	// Server view of this poll, carrying local read state and claims forward.
	incoming := make([]Record, 0, len(page))
	serverRead := make([]bool, 0, len(page))
	seen := make(map[uint]bool, len(page))
	for _, n := range page {
		if n.ID == 0 || seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		rec := fromServer(n)
		if i, ok := known[n.ID]; ok {
			rec.IsRead = rec.IsRead || current[i].IsRead
			rec.claimed = current[i].claimed
		}
		incoming = append(incoming, rec)
		serverRead = append(serverRead, n.IsRead)
	}

	var pairs []candidate
	for _, pi := range pushed {
		p := current[pi]
		for si, s := range incoming {
			if s.claimed || s.key() != p.key() {
				continue
			}
			gap := p.CreatedAt.Sub(s.CreatedAt)
			if gap < 0 {
				gap = -gap
			}
			if gap <= window {
				pairs = append(pairs, candidate{push: pi, server: si, gap: gap})
			}
		}
	}
	slices.SortStableFunc(pairs, func(a, b candidate) int { return cmp.Compare(a.gap, b.gap) })

	replaced := make(map[int]bool)
	for _, c := range pairs {
		if replaced[c.push] || incoming[c.server].claimed {
			continue
		}
		replaced[c.push] = true
		incoming[c.server].claimed = true
		incoming[c.server].IsRead = incoming[c.server].IsRead || current[c.push].IsRead
	}

	for i, rec := range incoming {
		if rec.IsRead && !serverRead[i] {
			unsynced = append(unsynced, rec.ServerID)
		}
	}

	out = make([]Record, 0, len(current)+len(incoming))
	out = append(out, incoming...)
	for i, r := range current {
		switch {
		case r.Pushed() && replaced[i]:
		case !r.Pushed() && seen[r.ServerID]:
		default:
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b Record) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, unsynced
}
