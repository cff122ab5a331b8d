package queue

import (
	"testing"

	"github.com/NicolasHaas/peermatch/pkg/model"
)

func TestAttemptMatch(t *testing.T) {
	em := model.NewDifficultySet(model.DifficultyEasy, model.DifficultyMedium)
	mh := model.NewDifficultySet(model.DifficultyMedium, model.DifficultyHard)

	tests := []struct {
		name      string
		waiting   []model.QueueEntry
		next      model.QueueEntry
		wantMatch bool
		wantWith  model.UserID
		wantDiff  model.Difficulty
		wantLeft  int
	}{
		{
			name:     "empty pool",
			next:     entryAt("a", easy, 0, 1),
			wantLeft: 1,
		},
		{
			name:      "intersection picks easy",
			waiting:   []model.QueueEntry{entryAt("a", easy, 0, 1)},
			next:      entryAt("b", em, 1, 2),
			wantMatch: true, wantWith: "a", wantDiff: model.DifficultyEasy,
		},
		{
			name:     "disjoint stays queued",
			waiting:  []model.QueueEntry{entryAt("a", easy, 0, 1)},
			next:     entryAt("b", hard, 1, 2),
			wantLeft: 2,
		},
		{
			name: "oldest compatible wins across buckets",
			waiting: []model.QueueEntry{
				entryAt("h", hard, 0, 1),
				entryAt("m", medium, 1, 2),
				entryAt("e", easy, 2, 3),
			},
			next:      entryAt("x", em, 3, 4),
			wantMatch: true, wantWith: "m", wantDiff: model.DifficultyMedium,
			wantLeft: 2,
		},
		{
			name:      "agreed is lexicographically smallest",
			waiting:   []model.QueueEntry{entryAt("a", mh, 0, 1)},
			next:      entryAt("b", model.NewDifficultySet(model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard), 1, 2),
			wantMatch: true, wantWith: "a", wantDiff: model.DifficultyHard,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPool()
			for _, w := range tt.waiting {
				if err := p.Enqueue(w); err != nil {
					t.Fatalf("Enqueue %s: %v", w.UserID, err)
				}
			}
			if err := p.Enqueue(tt.next); err != nil {
				t.Fatalf("Enqueue next: %v", err)
			}

			pair, ok := AttemptMatch(p, tt.next)
			if ok != tt.wantMatch {
				t.Fatalf("AttemptMatch: matched=%v, want %v", ok, tt.wantMatch)
			}
			if ok {
				if pair.First.UserID != tt.wantWith || pair.Second.UserID != tt.next.UserID {
					t.Fatalf("AttemptMatch: paired %s with %s, want %s with %s",
						pair.First.UserID, pair.Second.UserID, tt.wantWith, tt.next.UserID)
				}
				if pair.Difficulty != tt.wantDiff {
					t.Fatalf("AttemptMatch: difficulty %s, want %s", pair.Difficulty, tt.wantDiff)
				}
				if _, still := p.Get(pair.First.UserID); still {
					t.Fatalf("AttemptMatch: %s still queued", pair.First.UserID)
				}
				if _, still := p.Get(pair.Second.UserID); still {
					t.Fatalf("AttemptMatch: %s still queued", pair.Second.UserID)
				}
			}
			if p.Len() != tt.wantLeft {
				t.Fatalf("pool len = %d, want %d", p.Len(), tt.wantLeft)
			}
		})
	}
}

func TestAttemptMatchNeverPairsSelf(t *testing.T) {
	p := NewPool()
	a := entryAt("a", easy, 0, 1)
	_ = p.Enqueue(a)
	if _, ok := AttemptMatch(p, a); ok {
		t.Fatalf("AttemptMatch paired a user with itself")
	}
	if p.Len() != 1 {
		t.Fatalf("pool len = %d, want 1", p.Len())
	}
}

func TestAttemptMatchRequiresQueuedEntry(t *testing.T) {
	p := NewPool()
	_ = p.Enqueue(entryAt("a", easy, 0, 1))
	if _, ok := AttemptMatch(p, entryAt("ghost", easy, 1, 2)); ok {
		t.Fatalf("AttemptMatch matched an entry that is not in the pool")
	}
	if p.Len() != 1 {
		t.Fatalf("pool len = %d, want 1", p.Len())
	}
}

func TestAttemptMatchFIFO(t *testing.T) {
	p := NewPool()
	for i, id := range []string{"a", "b", "c"} {
		_ = p.Enqueue(entryAt(id, easy, int64(i), uint64(i+1)))
	}
	// a, b and c are all compatible but never matched with each other
	// here; the pool is fed directly. D must take the earliest.
	d := entryAt("d", easy, 3, 4)
	_ = p.Enqueue(d)
	pair, ok := AttemptMatch(p, d)
	if !ok || pair.First.UserID != "a" {
		t.Fatalf("AttemptMatch: want d paired with a, got %+v ok=%v", pair, ok)
	}
	if got := collect(p, easy); !equalIDs(got, "b", "c") {
		t.Fatalf("remaining = %v", got)
	}
}
