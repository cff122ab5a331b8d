package queue

import (
	"errors"
	"testing"
	"time"

	"github.com/NicolasHaas/peermatch/pkg/model"
)

var (
	easy   = model.NewDifficultySet(model.DifficultyEasy)
	medium = model.NewDifficultySet(model.DifficultyMedium)
	hard   = model.NewDifficultySet(model.DifficultyHard)
)

func entryAt(id string, set model.DifficultySet, sec int64, seq uint64) model.QueueEntry {
	return model.QueueEntry{
		UserID:       model.UserID(id),
		Difficulties: set,
		EnqueuedAt:   time.Unix(1700000000+sec, 0),
		Seq:          seq,
	}
}

func collect(p *Pool, s model.DifficultySet) []model.UserID {
	var ids []model.UserID
	for e := range p.PeekCandidates(s) {
		ids = append(ids, e.UserID)
	}
	return ids
}

func equalIDs(a []model.UserID, b ...string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if string(a[i]) != b[i] {
			return false
		}
	}
	return true
}

func TestPoolEnqueueDequeue(t *testing.T) {
	p := NewPool()
	if err := p.Enqueue(entryAt("a", easy, 0, 1)); err != nil {
		t.Fatalf("Enqueue: unexpected error: %v", err)
	}
	if err := p.Enqueue(entryAt("a", hard, 1, 2)); !errors.Is(err, model.ErrAlreadyQueued) {
		t.Fatalf("Enqueue duplicate: want ErrAlreadyQueued, got %v", err)
	}
	if err := p.Enqueue(entryAt("b", 0, 2, 3)); !errors.Is(err, model.ErrInvalidCriteria) {
		t.Fatalf("Enqueue empty set: want ErrInvalidCriteria, got %v", err)
	}
	if p.Len() != 1 {
		t.Fatalf("Len: want 1, got %d", p.Len())
	}

	e, err := p.Dequeue("a")
	if err != nil {
		t.Fatalf("Dequeue: unexpected error: %v", err)
	}
	if e.UserID != "a" || e.Difficulties != easy {
		t.Fatalf("Dequeue: wrong entry %+v", e)
	}
	if _, err := p.Dequeue("a"); !errors.Is(err, model.ErrNotQueued) {
		t.Fatalf("Dequeue twice: want ErrNotQueued, got %v", err)
	}
	if p.Len() != 0 || p.Depth(model.DifficultyEasy) != 0 {
		t.Fatalf("pool not empty after dequeue: len=%d depth=%d", p.Len(), p.Depth(model.DifficultyEasy))
	}
}

func TestPoolDequeueRemovesFromEveryBucket(t *testing.T) {
	p := NewPool()
	all := model.NewDifficultySet(model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard)
	_ = p.Enqueue(entryAt("a", all, 0, 1))
	_ = p.Enqueue(entryAt("b", medium, 1, 2))

	for _, d := range model.Difficulties() {
		if p.Depth(d) == 0 {
			t.Fatalf("Depth(%s): want a waiter", d)
		}
	}
	if _, err := p.Dequeue("a"); err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if p.Depth(model.DifficultyEasy) != 0 || p.Depth(model.DifficultyHard) != 0 {
		t.Fatalf("a still present in a bucket")
	}
	if p.Depth(model.DifficultyMedium) != 1 {
		t.Fatalf("Depth(medium): want 1, got %d", p.Depth(model.DifficultyMedium))
	}
}

func TestPeekCandidatesOrder(t *testing.T) {
	p := NewPool()
	em := model.NewDifficultySet(model.DifficultyEasy, model.DifficultyMedium)
	_ = p.Enqueue(entryAt("m1", medium, 0, 1))
	_ = p.Enqueue(entryAt("e1", easy, 1, 2))
	_ = p.Enqueue(entryAt("both", em, 2, 3))
	_ = p.Enqueue(entryAt("h1", hard, 3, 4))
	_ = p.Enqueue(entryAt("e2", easy, 4, 5))

	if got := collect(p, em); !equalIDs(got, "m1", "e1", "both", "e2") {
		t.Fatalf("PeekCandidates(easy,medium) = %v", got)
	}
	if got := collect(p, hard); !equalIDs(got, "h1") {
		t.Fatalf("PeekCandidates(hard) = %v", got)
	}
	// Restartable: a second range sees the same sequence.
	if got := collect(p, em); !equalIDs(got, "m1", "e1", "both", "e2") {
		t.Fatalf("PeekCandidates second pass = %v", got)
	}
}

func TestPeekCandidatesLazy(t *testing.T) {
	p := NewPool()
	for i, id := range []string{"a", "b", "c"} {
		_ = p.Enqueue(entryAt(id, easy, int64(i), uint64(i)))
	}
	n := 0
	for range p.PeekCandidates(easy) {
		n++
		break
	}
	if n != 1 {
		t.Fatalf("early break: iterated %d entries", n)
	}
}

func TestEnqueueOutOfOrderTimestamp(t *testing.T) {
	p := NewPool()
	_ = p.Enqueue(entryAt("late", easy, 10, 1))
	_ = p.Enqueue(entryAt("early", easy, 5, 2))

	if got := collect(p, easy); !equalIDs(got, "early", "late") {
		t.Fatalf("PeekCandidates = %v, want early first", got)
	}
	entries := p.Entries()
	if len(entries) != 2 || entries[0].UserID != "early" {
		t.Fatalf("Entries = %+v", entries)
	}
}
