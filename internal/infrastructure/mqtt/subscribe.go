package mqtt

import (
	"fmt"
	"sync"
)

// subscription is remembered so it can be replayed after a reconnect.
type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// subscriptionSet is the client's record of live subscriptions, keyed by
// topic filter.
type subscriptionSet struct {
	mu     sync.Mutex
	byName map[string]subscription
}

func (s *subscriptionSet) init() {
	s.byName = make(map[string]subscription)
}

func (s *subscriptionSet) put(sub subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byName == nil {
		s.init()
	}
	s.byName[sub.topic] = sub
}

func (s *subscriptionSet) drop(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byName, topic)
}

func (s *subscriptionSet) snapshot() []subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]subscription, 0, len(s.byName))
	for _, sub := range s.byName {
		out = append(out, sub)
	}
	return out
}

// Subscribe routes messages matching the topic filter to handler and keeps
// the route across reconnects. Filters may use the + and # wildcards.
//
// Example:
//
//	topic := mqtt.Topics{}.ServiceCall("entity_overrides", "export_overrides")
//	err := client.Subscribe(topic, 1, func(topic string, payload []byte) error {
//	    return handle(payload)
//	})
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler for %s", ErrSubscribeFailed, topic)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	// Recorded first so a reconnect racing this call still restores it.
	sub := subscription{topic: topic, qos: qos, handler: handler}
	c.subs.put(sub)

	if err := awaitToken(c.client.Subscribe(topic, qos, c.dispatch(handler)), ErrSubscribeFailed); err != nil {
		c.subs.drop(topic)
		return err
	}
	return nil
}

// Unsubscribe removes the route for a topic filter previously passed to
// Subscribe. Messages already in flight may still reach the handler.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subs.drop(topic)
	return awaitToken(c.client.Unsubscribe(topic), ErrUnsubscribeFailed)
}
