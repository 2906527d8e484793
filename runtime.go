package scriptport

import (
	"sync"
	"time"
)

// intervalDriver is the default TickDriver. Every registered callback gets
// its own goroutine driven by a time.Ticker; unregistering stops the
// goroutine.
type intervalDriver struct {
	interval time.Duration

	mu    sync.Mutex
	next  TickToken
	stops map[TickToken]chan struct{}
}

func newIntervalDriver(interval time.Duration) *intervalDriver {
	return &intervalDriver{
		interval: interval,
		stops:    make(map[TickToken]chan struct{}),
	}
}

// Register starts invoking fn on the driver interval
func (d *intervalDriver) Register(fn func()) TickToken {
	d.mu.Lock()
	d.next++
	token := d.next
	stop := make(chan struct{})
	d.stops[token] = stop
	d.mu.Unlock()

	go func() {
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				fn()
			case <-stop:
				return
			}
		}
	}()

	return token
}

// Unregister stops invoking the callback identified by token. Unknown
// tokens are ignored.
func (d *intervalDriver) Unregister(token TickToken) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if stop, ok := d.stops[token]; ok {
		close(stop)
		delete(d.stops, token)
	}
}
