package engine

import "time"

// The helpers below implement the in-memory half of every read-modify-write
// cycle. Callers hold the collection lock.

// Index returns the position of the first record satisfying match, or -1.
func Index(records []Record, match Matcher) int {
	if match == nil {
		return -1
	}
	for i, r := range records {
		if match(r) {
			return i
		}
	}
	return -1
}

func appendTo(records []Record, collection string, payload Record, now time.Time) ([]Record, Record) {
	rec := PolicyFor(collection).Stamp(records, payload, now)
	return append(records, rec), rec
}

func updateIn(records []Record, collection string, match Matcher, changes Record) (Record, error) {
	i := Index(records, match)
	if i < 0 {
		return nil, ErrNotFound
	}
	records[i] = PolicyFor(collection).Apply(records[i], changes)
	return records[i], nil
}

func deleteFrom(records []Record, match Matcher) ([]Record, Record, error) {
	i := Index(records, match)
	if i < 0 {
		return records, nil, ErrNotFound
	}
	removed := records[i]
	out := make([]Record, 0, len(records)-1)
	out = append(out, records[:i]...)
	out = append(out, records[i+1:]...)
	return out, removed, nil
}

func cloneAll(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
