package events

import (
	"errors"
	"strings"
	"sync"

	"github.com/smallbiznis/hydrapay/internal/hydra"
	"go.uber.org/fx"
)

// Wildcard receives every published event regardless of head.
const Wildcard = "*"

const (
	DefaultBacklogSize      = 20
	DefaultSubscriberBuffer = 64
)

var (
	ErrBusUnavailable = errors.New("bus_unavailable")
	ErrInvalidTopic   = errors.New("invalid_topic")
)

var Module = fx.Module("hydra.events",
	fx.Provide(NewBus),
)

// Bus fans head events out per headId topic. Publish never blocks; a slow
// subscriber loses events rather than stalling the node.
type Bus struct {
	mu          sync.RWMutex
	topics      map[string]*topic
	backlogSize int
}

type topic struct {
	mu      sync.Mutex
	backlog []hydra.HeadEvent
	subs    map[uint64]chan hydra.HeadEvent
	nextID  uint64
}

type Subscription struct {
	bus   *Bus
	topic string
	id    uint64
	ch    chan hydra.HeadEvent
	once  sync.Once
}

func NewBus() *Bus {
	return &Bus{
		topics:      make(map[string]*topic),
		backlogSize: DefaultBacklogSize,
	}
}

// Publish delivers to the head's topic and to the wildcard topic.
func (b *Bus) Publish(event hydra.HeadEvent) {
	if b == nil {
		return
	}
	headID := strings.TrimSpace(event.HeadID)
	if headID == "" {
		return
	}
	b.deliver(headID, event, true)
	b.deliver(Wildcard, event, false)
}

func (b *Bus) deliver(name string, event hydra.HeadEvent, keep bool) {
	if keep {
		b.ensureTopic(name)
	}
	// holding the bus read lock keeps Forget from orphaning the topic mid-send
	b.mu.RLock()
	defer b.mu.RUnlock()
	t := b.topics[name]
	if t == nil {
		return
	}

	t.mu.Lock()
	if keep {
		t.backlog = append(t.backlog, event)
		if len(t.backlog) > b.backlogSize {
			t.backlog = t.backlog[len(t.backlog)-b.backlogSize:]
		}
	}
	// sends stay under the topic lock so Close cannot race a send
	for _, ch := range t.subs {
		select {
		case ch <- event:
		default:
		}
	}
	t.mu.Unlock()
}

// Subscribe returns the subscription plus the backlog recorded for the topic.
func (b *Bus) Subscribe(name string, buffer int) (*Subscription, []hydra.HeadEvent, error) {
	if b == nil {
		return nil, nil, ErrBusUnavailable
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil, ErrInvalidTopic
	}
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}

	b.mu.Lock()
	t := b.topics[name]
	if t == nil {
		t = &topic{subs: make(map[uint64]chan hydra.HeadEvent)}
		b.topics[name] = t
	}
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	ch := make(chan hydra.HeadEvent, buffer)
	t.subs[id] = ch
	backlog := append([]hydra.HeadEvent(nil), t.backlog...)
	t.mu.Unlock()
	b.mu.Unlock()

	return &Subscription{bus: b, topic: name, id: id, ch: ch}, backlog, nil
}

// Forget drops a head topic and its backlog once the head is settled.
func (b *Bus) Forget(headID string) {
	if b == nil {
		return
	}
	b.mu.Lock()
	t := b.topics[headID]
	if t != nil {
		t.mu.Lock()
		if len(t.subs) == 0 {
			delete(b.topics, headID)
		} else {
			t.backlog = nil
		}
		t.mu.Unlock()
	}
	b.mu.Unlock()
}

func (b *Bus) ensureTopic(name string) *topic {
	b.mu.RLock()
	current := b.topics[name]
	b.mu.RUnlock()
	if current != nil {
		return current
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	current = b.topics[name]
	if current == nil {
		current = &topic{subs: make(map[uint64]chan hydra.HeadEvent)}
		b.topics[name] = current
	}
	return current
}

// unsubscribe also drops a topic left with neither subscribers nor backlog,
// which is where a forgotten head ends up once its last stream goes away.
func (b *Bus) unsubscribe(name string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.topics[name]
	if t == nil {
		return
	}

	t.mu.Lock()
	if ch, ok := t.subs[id]; ok {
		delete(t.subs, id)
		close(ch)
	}
	if len(t.subs) == 0 && len(t.backlog) == 0 {
		delete(b.topics, name)
	}
	t.mu.Unlock()
}

func (s *Subscription) Events() <-chan hydra.HeadEvent {
	if s == nil {
		return nil
	}
	return s.ch
}

// Close unsubscribes and closes the events channel.
func (s *Subscription) Close() {
	if s == nil || s.bus == nil {
		return
	}
	s.once.Do(func() {
		s.bus.unsubscribe(s.topic, s.id)
	})
}
