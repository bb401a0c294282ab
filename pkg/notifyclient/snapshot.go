package notifyclient

import (
	"maps"
	"slices"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// Snapshot is the client's view of one user's notifications.
// Items are ordered newest first.
type Snapshot struct {
	Items       []notifications.Notification
	UnreadCount int
	// Stale is set when the last refresh failed and Items come from an
	// earlier successful fetch, or are empty when none succeeded.
	Stale     bool
	Err       error
	FetchedAt time.Time
}

func newSnapshot(items []notifications.Notification, at time.Time) Snapshot {
	sorted := notifications.SortByRecency(items)
	return Snapshot{Items: sorted, UnreadCount: notifications.CountUnread(sorted), FetchedAt: at}
}

func (s Snapshot) clone() Snapshot {
	s.Items = slices.Clone(s.Items)
	if s.Items == nil {
		s.Items = []notifications.Notification{}
	}
	return s
}

// withRead returns a copy with id flipped to read. Unknown ids are ignored.
func (s Snapshot) withRead(id string, at time.Time) Snapshot {
	i := slices.IndexFunc(s.Items, func(n notifications.Notification) bool { return n.ID == id })
	if i < 0 || s.Items[i].IsRead {
		return s
	}
	s.Items = slices.Clone(s.Items)
	s.Items[i].MarkAsRead(at)
	s.UnreadCount = notifications.CountUnread(s.Items)
	return s
}

// withAllRead returns a copy with every item flipped to read.
func (s Snapshot) withAllRead(at time.Time) Snapshot {
	if s.UnreadCount == 0 {
		return s
	}
	s.Items = slices.Clone(s.Items)
	for i := range s.Items {
		s.Items[i].MarkAsRead(at)
	}
	s.UnreadCount = 0
	return s
}

// withConfirmed replaces the cached copy of n with the backend's version.
func (s Snapshot) withConfirmed(n notifications.Notification) Snapshot {
	i := slices.IndexFunc(s.Items, func(it notifications.Notification) bool { return it.ID == n.ID })
	if i < 0 {
		return s
	}
	s.Items = slices.Clone(s.Items)
	s.Items[i] = n
	s.UnreadCount = notifications.CountUnread(s.Items)
	return s
}

func (s Snapshot) unreadIDs() []string {
	var out []string
	for _, n := range s.Items {
		if !n.IsRead {
			out = append(out, n.ID)
		}
	}
	return out
}

// keepRead carries read items of prev over to s where s still has them
// unread, e.g. when s comes from a fetch that started before a mark.
func (s Snapshot) keepRead(prev Snapshot) Snapshot {
	read := make(map[string]notifications.Notification)
	for _, n := range prev.Items {
		if n.IsRead {
			read[n.ID] = n
		}
	}
	return s.apply(func(n notifications.Notification) (notifications.Notification, bool) {
		old, ok := read[n.ID]
		return old, ok
	})
}

// withMarks flips the ids in m that s still has unread.
func (s Snapshot) withMarks(m localMarks) Snapshot {
	if len(m) == 0 {
		return s
	}
	return s.apply(func(n notifications.Notification) (notifications.Notification, bool) {
		at, ok := m[n.ID]
		if !ok {
			return n, false
		}
		n.MarkAsRead(at)
		return n, true
	})
}

// apply replaces unread items for which read returns true.
func (s Snapshot) apply(read func(notifications.Notification) (notifications.Notification, bool)) Snapshot {
	var items []notifications.Notification
	for i, n := range s.Items {
		if n.IsRead {
			continue
		}
		r, ok := read(n)
		if !ok {
			continue
		}
		if items == nil {
			items = slices.Clone(s.Items)
		}
		items[i] = r
	}
	if items == nil {
		return s
	}
	s.Items = items
	s.UnreadCount = notifications.CountUnread(items)
	return s
}

// localMarks maps ids marked read on this client to the local read time.
// Values are never mutated in place; with and without return copies.
type localMarks map[string]time.Time

func (m localMarks) with(at time.Time, ids ...string) localMarks {
	out := maps.Clone(m)
	if out == nil {
		out = make(localMarks, len(ids))
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			out[id] = at
		}
	}
	return out
}

// without drops the ids the backend reports read.
func (m localMarks) without(items []notifications.Notification) localMarks {
	out := maps.Clone(m)
	for _, n := range items {
		if n.IsRead {
			delete(out, n.ID)
		}
	}
	return out
}

func (m localMarks) drop(id string) localMarks {
	out := maps.Clone(m)
	delete(out, id)
	return out
}
