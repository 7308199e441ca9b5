package inbox

// Op is a local change applied before the server confirms it. Ops are never rolled
// back; the next poll corrects anything the server rejected.
type Op interface {
	apply(records []Record) (changed bool)
}

// MarkRead marks one record read by its ID.
type MarkRead struct {
	ID string
}

func (o MarkRead) apply(records []Record) bool {
	for i := range records {
		if records[i].ID == o.ID {
			if records[i].IsRead {
				return false
			}
			records[i].IsRead = true
			return true
		}
	}
	return false
}

// MarkAllRead marks every record read.
type MarkAllRead struct{}

func (MarkAllRead) apply(records []Record) bool {
	changed := false
	for i := range records {
		if !records[i].IsRead {
			records[i].IsRead = true
			changed = true
		}
	}
	return changed
}
