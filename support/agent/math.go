package agent

import (
	"math"
	"math/rand"
)

// RateIterator schedules events that arrive as a Poisson process with a fixed mean rate per epoch.
type RateIterator struct {
	rnd           *rand.Rand
	rate          float64
	nextOccurence float64
}

func NewRateIterator(rate float64, seed int64) *RateIterator {
	ri := &RateIterator{
		rnd:           rand.New(rand.NewSource(seed)),
		rate:          rate,
		nextOccurence: 1.0, // next occurrence should happen next tick
	}
	ri.chooseNext() // randomize first occurrence
	return ri
}

// Calls f once for each event landing in this epoch.
// f is called `rate` times per tick on average, but may be called zero or many times in any one tick.
// A non-positive rate never fires.
func (ri *RateIterator) Tick(f func() error) error {
	ri.nextOccurence -= 1.0
	for ri.nextOccurence < 1.0 {
		if err := f(); err != nil {
			return err
		}
		ri.chooseNext()
	}
	return nil
}

// Choose next event according to a poisson distribution for the rate
func (ri *RateIterator) chooseNext() {
	if ri.rate <= 0 {
		ri.nextOccurence = math.Inf(1)
		return
	}
	ri.nextOccurence += -math.Log(1-ri.rnd.Float64()) / ri.rate
}
