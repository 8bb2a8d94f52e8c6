// timer/timer.go
package timer

import (
	"container/heap"
	"sync"
	"time"
)

type task struct {
	id       int64
	execute  time.Time
	callback func()
	index    int
}

type taskQueue []*task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	return q[i].execute.Before(q[j].execute)
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x interface{}) {
	n := len(*q)
	t := x.(*task)
	t.index = n
	*q = append(*q, t)
}

func (q *taskQueue) Pop() interface{} {
	old := *q
	n := len(old)
	t := old[n-1]
	t.index = -1
	*q = old[0 : n-1]
	return t
}

// Manager schedules one-shot deadline callbacks for all matches on a single
// heap. Callbacks run on their own goroutine and must not assume they fire
// exactly on time; a cancelled timer never fires.
type Manager struct {
	queue   taskQueue
	mutex   sync.Mutex
	nextID  int64
	stopCh  chan struct{}
	stopped bool
}

func NewManager() *Manager {
	m := &Manager{
		queue:  make(taskQueue, 0),
		nextID: 1,
		stopCh: make(chan struct{}),
	}
	heap.Init(&m.queue)
	go m.process()
	return m
}

// Schedule registers callback to run after delay and returns a handle for
// Cancel.
func (m *Manager) Schedule(delay time.Duration, callback func()) int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	t := &task{
		id:       m.nextID,
		execute:  time.Now().Add(delay),
		callback: callback,
	}
	m.nextID++

	heap.Push(&m.queue, t)
	return t.id
}

// Cancel removes a pending timer. Cancelling an already-fired or unknown
// handle is a no-op.
func (m *Manager) Cancel(timerID int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for i, t := range m.queue {
		if t.id == timerID {
			heap.Remove(&m.queue, i)
			break
		}
	}
}

// Stop shuts the scheduler down. Pending timers never fire.
func (m *Manager) Stop() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if !m.stopped {
		m.stopped = true
		close(m.stopCh)
	}
}

func (m *Manager) process() {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.mutex.Lock()
			now := time.Now()
			var due []*task
			for m.queue.Len() > 0 {
				t := m.queue[0]
				if t.execute.After(now) {
					break
				}
				heap.Pop(&m.queue)
				due = append(due, t)
			}
			m.mutex.Unlock()

			for _, t := range due {
				go t.callback()
			}

		case <-m.stopCh:
			return
		}
	}
}
