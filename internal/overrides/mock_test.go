package overrides

import (
	"context"
	"sort"
	"sync"

	"github.com/nerrad567/gray-logic-overrides/internal/audit"
	"github.com/nerrad567/gray-logic-overrides/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-overrides/internal/registry"
)

// mockAdapter is an in-memory registry.Adapter.
type mockAdapter struct {
	mu      sync.Mutex
	entries map[string]registry.Entry
	areas   []registry.Area
	updates int

	listErr   error
	updateErr error
}

func newMockAdapter(entries ...registry.Entry) *mockAdapter {
	m := &mockAdapter{entries: make(map[string]registry.Entry)}
	for _, e := range entries {
		m.entries[e.EntityID] = e
	}
	return m
}

func (m *mockAdapter) List(_ context.Context) ([]registry.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]registry.Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out, nil
}

func (m *mockAdapter) Get(_ context.Context, id string) (*registry.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, registry.ErrEntityNotFound
	}
	return &e, nil
}

func (m *mockAdapter) Update(_ context.Context, id string, u registry.Update) (*registry.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	e, ok := m.entries[id]
	if !ok {
		return nil, registry.ErrEntityNotFound
	}
	if u.Name != nil {
		e.Name = *u.Name
	}
	if u.Icon != nil {
		e.Icon = *u.Icon
	}
	if u.AreaID != nil {
		e.AreaID = *u.AreaID
	}
	if u.Hidden != nil {
		switch {
		case !*u.Hidden:
			e.HiddenBy = ""
		case e.HiddenBy == "":
			e.HiddenBy = registry.ByUser
		}
	}
	if u.Disabled != nil {
		switch {
		case !*u.Disabled:
			e.DisabledBy = ""
		case e.DisabledBy == "":
			e.DisabledBy = registry.ByUser
		}
	}
	m.entries[id] = e
	m.updates++
	return &e, nil
}

func (m *mockAdapter) Areas(_ context.Context) ([]registry.Area, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]registry.Area(nil), m.areas...), nil
}

func (m *mockAdapter) entry(id string) registry.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[id]
}

func (m *mockAdapter) updateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates
}

// mockNotifier records notifications.
type mockNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (n *mockNotifier) Notify(_ context.Context, note Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, note)
	return nil
}

// mockEvents records registry-updated events.
type mockEvents struct {
	mu     sync.Mutex
	events [][]string
}

func (e *mockEvents) PublishRegistryUpdated(_ context.Context, ids []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ids)
	return nil
}

// mockHistory is an in-memory audit.Repository.
type mockHistory struct {
	mu        sync.Mutex
	runs      []audit.Run
	createErr error
}

func (h *mockHistory) Create(_ context.Context, run *audit.Run) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.createErr != nil {
		return h.createErr
	}
	h.runs = append(h.runs, *run)
	return nil
}

func (h *mockHistory) List(_ context.Context, filter audit.Filter) (*audit.ListResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	runs := []audit.Run{}
	for i := len(h.runs) - 1; i >= 0; i-- {
		if filter.Operation == "" || h.runs[i].Operation == filter.Operation {
			runs = append(runs, h.runs[i])
		}
	}
	return &audit.ListResult{Runs: runs, Total: len(runs), Limit: filter.Limit}, nil
}

// mockMetrics records run metrics.
type mockMetrics struct {
	mu   sync.Mutex
	runs []metricRun
}

type metricRun struct {
	operation string
	success   bool
	fields    map[string]any
}

func (m *mockMetrics) WriteRunMetric(op string, success bool, fields map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, metricRun{operation: op, success: success, fields: fields})
}

// mockBus records subscriptions and publishes.
type mockBus struct {
	mu        sync.Mutex
	handlers  map[string]mqtt.MessageHandler
	published []published
}

type published struct {
	topic   string
	payload []byte
}

func newMockBus() *mockBus {
	return &mockBus{handlers: make(map[string]mqtt.MessageHandler)}
}

func (b *mockBus) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = handler
	return nil
}

func (b *mockBus) Unsubscribe(topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, topic)
	return nil
}

func (b *mockBus) Publish(topic string, payload []byte, _ byte, _ bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, published{topic: topic, payload: payload})
	return nil
}

func (b *mockBus) deliver(topic string, payload []byte) error {
	b.mu.Lock()
	h := b.handlers[topic]
	b.mu.Unlock()
	return h(topic, payload)
}

func (b *mockBus) last() published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published[len(b.published)-1]
}

// testEntries is a small registry used across tests.
func testEntries() []registry.Entry {
	return []registry.Entry{
		{EntityID: "light.kitchen", OriginalName: "Kitchen", Name: "Cooker Light", AreaID: "kitchen"},
		{EntityID: "light.hall", OriginalName: "Hall", HiddenBy: registry.ByUser},
		{EntityID: "Light.Porch", OriginalName: "Porch"},
		{EntityID: "switch.fan", OriginalName: "Fan", DisabledBy: registry.ByUser, Icon: "mdi:fan"},
		{EntityID: "sensor.outdoor", OriginalName: "Outdoor"},
	}
}
