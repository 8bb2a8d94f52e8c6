// notify/notify.go
package notify

import (
	"github.com/wfunc/matchserver/logger"
)

// Notifier is a fire-and-forget event sink for match lifecycle announcements.
// Publish must never block and its failures are invisible to callers; nothing
// in the protocol depends on these events being observed.
type Notifier interface {
	Publish(event string)
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) Publish(string) {}

// LogNotifier writes events to the server log.
type LogNotifier struct{}

func (LogNotifier) Publish(event string) {
	logger.Log.Infof("[EVENT] %s", event)
}

// BusNotifier pushes events onto a channel, dropping when the buffer is full.
// Used by tests and any opportunistic observer.
type BusNotifier struct {
	ch chan string
}

func NewBusNotifier(buffer int) *BusNotifier {
	return &BusNotifier{ch: make(chan string, buffer)}
}

func (b *BusNotifier) Publish(event string) {
	select {
	case b.ch <- event:
	default:
	}
}

func (b *BusNotifier) Events() <-chan string {
	return b.ch
}

// ForMode returns the notifier configured by name, defaulting to nop.
func ForMode(mode string) Notifier {
	if mode == "log" {
		return LogNotifier{}
	}
	return NopNotifier{}
}
