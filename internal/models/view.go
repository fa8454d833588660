package models

import (
	"sort"
	"sync/atomic"

	"github.com/iburn/mediacache/internal/events"
)

// View is a secondary index producing grouped, ordered enumeration over art objects
type View struct {
	// Group places an object in a group; false excludes it from the view
	Group func(art *ArtObject) (string, bool)
	// Less orders objects within a group. Nil orders by uid.
	Less func(a, b *ArtObject) bool

	ready atomic.Bool
}

func (v *View) isReady() bool {
	return v.ready.Load()
}

// ArtByNameView groups art by the first letter of its name and orders by name
func ArtByNameView() *View {
	return &View{
		Group: func(art *ArtObject) (string, bool) {
			if art.Name == "" {
				return "#", true
			}
			return string([]rune(art.Name)[0:1]), true
		},
		Less: func(a, b *ArtObject) bool {
			if a.Name != b.Name {
				return a.Name < b.Name
			}
			return a.UID < b.UID
		},
	}
}

// RegisterView registers view under name. Registration completes on a separate
// goroutine and then publishes events.ExtensionRegistered with the view name.
// done, when non-nil, is closed after the event is published.
func (db *Database) RegisterView(name string, view *View) (done <-chan struct{}) {
	db.mu.Lock()
	db.views[name] = view
	db.mu.Unlock()

	ch := make(chan struct{})
	go func() {
		defer close(ch)
		view.ready.Store(true)
		if db.hub != nil {
			db.hub.Publish(events.Event{Name: events.ExtensionRegistered, Key: name})
		}
	}()
	return ch
}

// IsViewRegistered reports whether name is registered and queryable
func (db *Database) IsViewRegistered(name string) bool {
	db.mu.RLock()
	view, ok := db.views[name]
	db.mu.RUnlock()
	return ok && view.isReady()
}

// ViewTransaction enumerates one view inside a read transaction
type ViewTransaction struct {
	groups  []string
	byGroup map[string][]*ArtObject
}

func newViewTransaction(view *View, arts []*ArtObject) *ViewTransaction {
	vt := &ViewTransaction{byGroup: make(map[string][]*ArtObject)}
	for _, art := range arts {
		group, ok := view.Group(art)
		if !ok {
			continue
		}
		if _, seen := vt.byGroup[group]; !seen {
			vt.groups = append(vt.groups, group)
		}
		vt.byGroup[group] = append(vt.byGroup[group], art)
	}

	sort.Strings(vt.groups)
	less := view.Less
	if less == nil {
		less = func(a, b *ArtObject) bool { return a.UID < b.UID }
	}
	for _, members := range vt.byGroup {
		sort.SliceStable(members, func(i, j int) bool { return less(members[i], members[j]) })
	}
	return vt
}

// EnumerateGroups calls fn for each group in order until fn returns false
func (vt *ViewTransaction) EnumerateGroups(fn func(group string) bool) {
	for _, group := range vt.groups {
		if !fn(group) {
			return
		}
	}
}

// EnumerateKeysAndObjects calls fn for each object of group in view order until fn returns false
func (vt *ViewTransaction) EnumerateKeysAndObjects(group string, fn func(key string, art *ArtObject, index int) bool) {
	for i, art := range vt.byGroup[group] {
		if !fn(art.UID, art, i) {
			return
		}
	}
}

// NumberOfItems returns the count of objects across all groups
func (vt *ViewTransaction) NumberOfItems() int {
	n := 0
	for _, members := range vt.byGroup {
		n += len(members)
	}
	return n
}
