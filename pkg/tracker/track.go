package tracker

import "github.com/99minutos/courier-tracking/pkg/wire"

// Track is the ordered list of locations a viewer shows for one delivery.
// Entries are unique by id. A Track is not safe for concurrent use; the
// Engine owns its Track and mutates it from a single goroutine.
type Track struct {
	entries []wire.Location
	ids     map[string]struct{}
}

// NewTrack returns a track holding locs.
func NewTrack(locs []wire.Location) *Track {
	t := &Track{}
	t.Replace(locs)
	return t
}

// Replace discards the current entries and takes locs as the new track.
// Duplicate ids in locs keep their first occurrence.
func (t *Track) Replace(locs []wire.Location) {
	t.entries = make([]wire.Location, 0, len(locs))
	t.ids = make(map[string]struct{}, len(locs))
	for _, l := range locs {
		t.Append(l)
	}
}

// Append adds loc at the end unless an entry with the same id exists. It
// reports whether the track changed.
func (t *Track) Append(loc wire.Location) bool {
	if t.ids == nil {
		t.ids = make(map[string]struct{})
	}
	if _, dup := t.ids[loc.ID]; dup {
		return false
	}
	t.ids[loc.ID] = struct{}{}
	t.entries = append(t.entries, loc)
	return true
}

func (t *Track) Len() int { return len(t.entries) }

// Last returns the most recent entry.
func (t *Track) Last() (wire.Location, bool) {
	if len(t.entries) == 0 {
		return wire.Location{}, false
	}
	return t.entries[len(t.entries)-1], true
}

// Locations returns a copy of the entries in order.
func (t *Track) Locations() []wire.Location {
	out := make([]wire.Location, len(t.entries))
	copy(out, t.entries)
	return out
}
