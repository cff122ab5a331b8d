// Package queue holds the waiting pool and the pairing algorithm.
//
// A Pool is a plain data structure and is not safe for concurrent use; the
// match coordinator serialises every access to it.
package queue

import (
	"fmt"
	"iter"
	"slices"
	"sort"

	"github.com/NicolasHaas/peermatch/pkg/model"
)

// Pool is the set of users waiting for a partner, bucketed by difficulty.
// Each bucket is ordered oldest first.
type Pool struct {
	entries map[model.UserID]model.QueueEntry
	buckets map[model.Difficulty][]model.UserID
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{
		entries: make(map[model.UserID]model.QueueEntry),
		buckets: make(map[model.Difficulty][]model.UserID),
	}
}

// Enqueue inserts e into every bucket its difficulty set covers.
func (p *Pool) Enqueue(e model.QueueEntry) error {
	if e.Difficulties.Empty() {
		return fmt.Errorf("queue: enqueue %s: %w", e.UserID, model.ErrInvalidCriteria)
	}
	if _, ok := p.entries[e.UserID]; ok {
		return fmt.Errorf("queue: enqueue %s: %w", e.UserID, model.ErrAlreadyQueued)
	}
	p.entries[e.UserID] = e
	for _, d := range e.Difficulties.Values() {
		b := p.buckets[d]
		// Entries nearly always arrive in order, so this is an append.
		i := sort.Search(len(b), func(i int) bool {
			return e.Before(p.entries[b[i]])
		})
		p.buckets[d] = slices.Insert(b, i, e.UserID)
	}
	return nil
}

// Dequeue removes and returns the entry of u.
func (p *Pool) Dequeue(u model.UserID) (model.QueueEntry, error) {
	e, ok := p.entries[u]
	if !ok {
		return model.QueueEntry{}, fmt.Errorf("queue: dequeue %s: %w", u, model.ErrNotQueued)
	}
	delete(p.entries, u)
	for _, d := range e.Difficulties.Values() {
		b := slices.DeleteFunc(p.buckets[d], func(id model.UserID) bool { return id == u })
		if len(b) == 0 {
			delete(p.buckets, d)
			continue
		}
		p.buckets[d] = b
	}
	return e, nil
}

// Get returns the entry of u, if queued.
func (p *Pool) Get(u model.UserID) (model.QueueEntry, bool) {
	e, ok := p.entries[u]
	return e, ok
}

// Len returns the number of waiting users.
func (p *Pool) Len() int { return len(p.entries) }

// Depth returns how many waiting users accept difficulty d.
func (p *Pool) Depth(d model.Difficulty) int { return len(p.buckets[d]) }

// Entries returns a snapshot of all waiting entries, oldest first.
func (p *Pool) Entries() []model.QueueEntry {
	out := make([]model.QueueEntry, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b model.QueueEntry) int {
		switch {
		case a.Before(b):
			return -1
		case b.Before(a):
			return 1
		}
		return 0
	})
	return out
}

// PeekCandidates yields, oldest first, every waiting entry whose set
// intersects s. Each entry is yielded once even if it sits in several of
// the requested buckets. The sequence can be ranged over repeatedly; the
// pool must not be modified while a range is in progress.
func (p *Pool) PeekCandidates(s model.DifficultySet) iter.Seq[model.QueueEntry] {
	return func(yield func(model.QueueEntry) bool) {
		var lists [][]model.UserID
		for _, d := range s.Values() {
			if b := p.buckets[d]; len(b) > 0 {
				lists = append(lists, b)
			}
		}
		heads := make([]int, len(lists))
		seen := make(map[model.UserID]struct{})

		for {
			best := -1
			var bestEntry model.QueueEntry
			for i, l := range lists {
				if heads[i] >= len(l) {
					continue
				}
				e := p.entries[l[heads[i]]]
				if best < 0 || e.Before(bestEntry) {
					best, bestEntry = i, e
				}
			}
			if best < 0 {
				return
			}
			heads[best]++
			if _, dup := seen[bestEntry.UserID]; dup {
				continue
			}
			seen[bestEntry.UserID] = struct{}{}
			if !yield(bestEntry) {
				return
			}
		}
	}
}
