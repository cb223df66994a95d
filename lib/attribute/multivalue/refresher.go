package multivalue

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/mvattr/lib/attribute/multivalue/internal"
	"github.com/ValentinKolb/mvattr/lib/util"
)

// --------------------------------------------------------------------------
// Statistics Refresher
// --------------------------------------------------------------------------

// startRefresher starts the statistics goroutine.
// if it is already running, this function does nothing
//
// Thread-safety: Writer-only.
func (c *column[T]) startRefresher() {
	if c.refresherRunning.CompareAndSwap(false, true) {
		c.events = util.NewEventQueue[internal.Event]()
		c.refresherDone = make(chan struct{})
		go c.refresher(c.events, c.cfg.StatsInterval, c.refresherDone)
	}
}

// stopRefresher stops the statistics goroutine and waits for it to exit.
// the refresher can't be started again after it has been stopped!
//
// Thread-safety: Writer-only.
func (c *column[T]) stopRefresher() {
	if c.refresherRunning.CompareAndSwap(true, false) {
		c.events.Close()
		<-c.refresherDone
	}
}

// refresher consumes commit events and recomputes the statistics at most once per interval.
// WARNING: this method should never be called directly, use startRefresher() and stopRefresher()
func (c *column[T]) refresher(events *util.EventQueue[internal.Event], interval time.Duration, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(interval)
	defer timer.Stop()

	dirty := false
	for {
		select {
		case event, ok := <-events.Recv():
			if !ok {
				return
			}
			switch event.Type {
			case internal.EventTCommit:
				dirty = true
			case internal.EventTRefresh:
				c.UpdateStatistics()
				dirty = false
			default:
				panic(fmt.Sprintf("unknown event %s", event))
			}

		case <-timer.C:
			if dirty {
				c.UpdateStatistics()
				dirty = false
			}
			timer.Reset(interval)
		}
	}
}
