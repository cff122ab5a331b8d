package match

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/NicolasHaas/peermatch/pkg/model"
	"github.com/NicolasHaas/peermatch/pkg/protocol"
)

func TestStressConcurrentJoinLeaveDisconnect(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}

	c, _ := newTestCoordinator(t)
	sets := []model.DifficultySet{
		easy, hard, easyMed,
		model.NewDifficultySet(model.DifficultyMedium),
		model.NewDifficultySet(model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard),
	}

	const (
		users = 64
		ops   = 200
	)

	var (
		wg      sync.WaitGroup
		matches atomic.Int64
	)
	for i := range users {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u := model.UserID(fmt.Sprintf("user-%d", i))
			rng := rand.New(rand.NewSource(int64(i)))
			for range ops {
				switch rng.Intn(4) {
				case 0, 1:
					out, _ := c.Join(u, sets[rng.Intn(len(sets))])
					for _, o := range out {
						if o.Event == protocol.EventMatchFound {
							matches.Add(1)
						}
					}
				case 2:
					_, _ = c.Leave(u)
				case 3:
					_, _ = c.Disconnect(u)
				}
			}
		}(i)
	}
	wg.Wait()

	checkInvariants(t, c)
	if matches.Load()%2 != 0 {
		t.Fatalf("odd number of match-found notifications: %d", matches.Load())
	}
	s := c.Stats()
	if s.Queued+2*s.ActiveRooms > users {
		t.Fatalf("more users accounted for than exist: %+v", s)
	}
}
