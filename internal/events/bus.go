package events

import (
	"sync"
	"time"
)

// Bus is an in-process ordered event stream with fan-out. Publishing never
// blocks the scheduler: each subscriber owns an unbounded queue drained by
// its own goroutine, so a slow observer cannot stall execution.
type Bus struct {
	mu   sync.Mutex
	seq  uint64
	subs []*subscriber
}

type subscriber struct {
	mu    sync.Mutex
	cond  *sync.Cond
	queue []Event
	done  chan struct{}
	out   chan Event
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Publish stamps the event with a sequence number and timestamp and delivers
// it to every current subscriber in order.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	b.seq++
	ev.Seq = b.seq
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	subs := make([]*subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		s.push(ev)
	}
}

// Subscribe returns a channel of events in publish order and a cancel
// function. Events published before the subscription are not replayed;
// events still queued at cancel time are dropped.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	s := &subscriber{out: make(chan Event), done: make(chan struct{})}
	s.cond = sync.NewCond(&s.mu)
	go s.drain()

	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			for i, cur := range b.subs {
				if cur == s {
					b.subs = append(b.subs[:i], b.subs[i+1:]...)
					break
				}
			}
			b.mu.Unlock()

			close(s.done)
			s.mu.Lock()
			s.cond.Signal()
			s.mu.Unlock()
		})
	}
	return s.out, cancel
}

func (s *subscriber) push(ev Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.cond.Signal()
	s.mu.Unlock()
}

func (s *subscriber) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *subscriber) drain() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed() {
			s.cond.Wait()
		}
		if s.closed() {
			s.mu.Unlock()
			close(s.out)
			return
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- ev:
		case <-s.done:
			close(s.out)
			return
		}
	}
}
