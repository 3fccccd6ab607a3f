package commit

import (
	"sort"
	"sync"

	"github.com/kilianp07/crewsched/core/model"
)

// Collection is the ordered in-memory set of assignments shared by the
// engine. Outside of ReplaceDay only the Controller mutates it.
type Collection struct {
	mu    sync.RWMutex
	items []model.Assignment
}

// NewCollection copies items into a new Collection.
func NewCollection(items []model.Assignment) *Collection {
	return &Collection{items: append([]model.Assignment(nil), items...)}
}

// Snapshot returns a copy of every assignment in collection order.
func (c *Collection) Snapshot() []model.Assignment {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.Assignment(nil), c.items...)
}

// Len returns the number of assignments.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Get returns the assignment with the given id.
func (c *Collection) Get(id string) (model.Assignment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.index(id); i >= 0 {
		return c.items[i], true
	}
	return model.Assignment{}, false
}

// Lane returns the crew's occupying assignments on day sorted by start.
func (c *Collection) Lane(crewID string, day model.DayKey) []model.Assignment {
	c.mu.RLock()
	var out []model.Assignment
	for _, a := range c.items {
		if a.CrewID == crewID && a.Date == day && a.Occupies() {
			out = append(out, a)
		}
	}
	c.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartMinutes < out[j].StartMinutes })
	return out
}

// Day returns every assignment on day in collection order.
func (c *Collection) Day(day model.DayKey) []model.Assignment {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []model.Assignment
	for _, a := range c.items {
		if a.Date == day {
			out = append(out, a)
		}
	}
	return out
}

// ReplaceDay swaps every assignment on day for items, which are appended
// after the assignments of other days.
func (c *Collection) ReplaceDay(day model.DayKey, items []model.Assignment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.items[:0:0]
	for _, a := range c.items {
		if a.Date != day {
			kept = append(kept, a)
		}
	}
	c.items = append(kept, items...)
}

func (c *Collection) index(id string) int {
	for i, a := range c.items {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func (c *Collection) insert(a model.Assignment) {
	c.mu.Lock()
	c.items = append(c.items, a)
	c.mu.Unlock()
}

// replace swaps the assignment stored under id for a, in place.
func (c *Collection) replace(id string, a model.Assignment) (model.Assignment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.index(id)
	if i < 0 {
		return model.Assignment{}, false
	}
	prev := c.items[i]
	c.items[i] = a
	return prev, true
}

// remove deletes id and reports where it was.
func (c *Collection) remove(id string) (model.Assignment, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.index(id)
	if i < 0 {
		return model.Assignment{}, -1, false
	}
	prev := c.items[i]
	c.items = append(c.items[:i], c.items[i+1:]...)
	return prev, i, true
}

// restoreAt puts a back at index i, clamped to the current length.
func (c *Collection) restoreAt(i int, a model.Assignment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i > len(c.items) {
		i = len(c.items)
	}
	c.items = append(c.items, model.Assignment{})
	copy(c.items[i+1:], c.items[i:])
	c.items[i] = a
}
