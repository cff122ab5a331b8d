package queue

import "github.com/NicolasHaas/peermatch/pkg/model"

// Pairing is a match proposed by AttemptMatch. First is the earlier waiter.
type Pairing struct {
	First      model.QueueEntry
	Second     model.QueueEntry
	Difficulty model.Difficulty
}

// AttemptMatch pairs next, which must already be queued, with the oldest
// compatible waiting entry. On success both entries are removed from the
// pool. Otherwise the pool is left untouched.
func AttemptMatch(p *Pool, next model.QueueEntry) (Pairing, bool) {
	if _, ok := p.Get(next.UserID); !ok {
		return Pairing{}, false
	}

	var (
		partner model.QueueEntry
		found   bool
	)
	for c := range p.PeekCandidates(next.Difficulties) {
		if c.UserID == next.UserID {
			continue
		}
		partner, found = c, true
		break
	}
	if !found {
		return Pairing{}, false
	}

	agreed, ok := partner.Difficulties.Agreed(next.Difficulties)
	if !ok {
		return Pairing{}, false
	}

	// Both entries are known to be present; removal cannot fail.
	_, _ = p.Dequeue(partner.UserID)
	_, _ = p.Dequeue(next.UserID)

	return Pairing{First: partner, Second: next, Difficulty: agreed}, true
}
