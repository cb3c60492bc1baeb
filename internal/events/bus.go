// Package events provides the in-process publish/subscribe fabric that
// decouples document/prediction writers from the orchestrator and API
// consumers. Topics are per-name broadcast channels: every subscriber
// registered at publish time receives the event, and a subscriber registered
// afterward never sees it. Nothing is buffered or replayed.
package events

import (
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/verity-ml/predict-cli/internal/model"
)

// Topic names used by the core.
const (
	TopicDocuments   = "documents"
	TopicPredictions = "predictions"
)

// subscriberBuffer is the per-subscriber channel capacity. Publish blocks
// once a subscriber falls this far behind rather than dropping events.
const subscriberBuffer = 64

// ErrTopicNotFound is returned when publishing to an unknown topic and
// auto-creation is disabled.
var ErrTopicNotFound = eris.New("events: topic not found")

// Subscription is one receiver on a topic. Events arrive on C until Cancel
// is called or the topic is removed; Done is closed when the subscription
// ends. C itself is never closed, so consumers select over C and Done.
type Subscription struct {
	sub *subscriber
}

// C returns the event channel.
func (s *Subscription) C() <-chan model.Event {
	return s.sub.ch
}

// Done is closed when the subscription is cancelled or its topic removed.
func (s *Subscription) Done() <-chan struct{} {
	return s.sub.done
}

// Cancel detaches the subscription from its topic. Safe to call more than
// once; events still sitting in the buffer may be drained from C.
func (s *Subscription) Cancel() {
	s.sub.close()
}

type subscriber struct {
	ch   chan model.Event
	done chan struct{}
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

// send delivers ev, blocking until the subscriber accepts it or the
// subscription ends.
func (s *subscriber) send(ev model.Event) {
	select {
	case <-s.done:
	case s.ch <- ev:
	}
}

type topic struct {
	mu   sync.Mutex
	subs map[int]*subscriber
	next int
}

// Bus is the topic registry. Construct with NewBus; safe for concurrent use.
type Bus struct {
	mu         sync.Mutex
	topics     map[string]*topic
	autoCreate bool
}

// NewBus creates an event bus. When autoCreate is true, publishing or
// subscribing to an unknown topic silently creates it empty.
func NewBus(autoCreate bool) *Bus {
	return &Bus{
		topics:     make(map[string]*topic),
		autoCreate: autoCreate,
	}
}

// RegisterTopic creates the named topic. Registration is idempotent:
// repeated calls keep the existing topic and its subscribers.
func (b *Bus) RegisterTopic(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.topics[name]; !ok {
		b.topics[name] = &topic{subs: make(map[int]*subscriber)}
	}
}

// RemoveTopic drops the named topic and ends all of its subscriptions.
// Removing an unknown topic is a no-op. A later publish to the name is an
// error unless the bus auto-creates topics, in which case the topic is
// silently recreated empty.
func (b *Bus) RemoveTopic(name string) {
	b.mu.Lock()
	t, ok := b.topics[name]
	delete(b.topics, name)
	b.mu.Unlock()

	if !ok {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for id, sub := range t.subs {
		delete(t.subs, id)
		sub.close()
	}
}

// ListTopics returns the currently registered topic names, sorted.
func (b *Bus) ListTopics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	names := make([]string, 0, len(b.topics))
	for name := range b.topics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Subscribe attaches a new receiver to the named topic. Only events
// published after Subscribe returns are delivered.
func (b *Bus) Subscribe(name string) (*Subscription, error) {
	t, err := b.lookup(name)
	if err != nil {
		return nil, err
	}

	sub := &subscriber{
		ch:   make(chan model.Event, subscriberBuffer),
		done: make(chan struct{}),
	}

	t.mu.Lock()
	id := t.next
	t.next++
	t.subs[id] = sub
	t.mu.Unlock()

	return &Subscription{sub: sub}, nil
}

// Publish delivers the event to every current subscriber of the named
// topic. Delivery blocks on slow subscribers rather than dropping events.
func (b *Bus) Publish(name string, ev model.Event) error {
	t, err := b.lookup(name)
	if err != nil {
		return err
	}

	t.mu.Lock()
	targets := make([]*subscriber, 0, len(t.subs))
	for id, sub := range t.subs {
		select {
		case <-sub.done:
			// Reap cancelled subscriptions lazily.
			delete(t.subs, id)
		default:
			targets = append(targets, sub)
		}
	}
	t.mu.Unlock()

	for _, sub := range targets {
		sub.send(ev)
	}

	zap.L().Debug("event published",
		zap.String("topic", name),
		zap.String("action", string(ev.Action)),
		zap.String("target", ev.Target.ID),
		zap.Int("subscribers", len(targets)),
	)
	return nil
}

func (b *Bus) lookup(name string) (*topic, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[name]
	if !ok {
		if !b.autoCreate {
			return nil, eris.Wrapf(ErrTopicNotFound, "topic %q", name)
		}
		t = &topic{subs: make(map[int]*subscriber)}
		b.topics[name] = t
	}
	return t, nil
}
