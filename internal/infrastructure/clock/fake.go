package clock

import "time"

// Fake is a test Clock with a manually advanced wall-clock time and a set of
// manually fired tickers, matching the "fake clock and a step function"
// testing approach spec §9's design notes call for.
type Fake struct {
	now     time.Time
	tickers []*fakeTicker
}

// NewFake returns a Fake clock starting at now.
func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

func (f *Fake) Now() time.Time { return f.now }

func (f *Fake) NewTicker(d time.Duration) Ticker {
	t := &fakeTicker{ch: make(chan time.Time, 1), interval: d}
	f.tickers = append(f.tickers, t)
	return t
}

// Advance moves the clock forward by d and sends one tick to every ticker
// that has not been stopped, whatever its interval; the tick is dropped for
// a ticker whose previous tick has not been received yet.
func (f *Fake) Advance(d time.Duration) {
	f.now = f.now.Add(d)
	for _, t := range f.tickers {
		if t.stopped {
			continue
		}
		select {
		case t.ch <- f.now:
		default:
		}
	}
}

type fakeTicker struct {
	ch       chan time.Time
	interval time.Duration
	stopped  bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               { t.stopped = true }
