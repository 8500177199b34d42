package overrides

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-overrides/internal/infrastructure/mqtt"
)

// BusDomain is the service domain used in bus topics.
const BusDomain = "entity_overrides"

// EventRegistryUpdated is the core event published after an import changed
// entities.
const EventRegistryUpdated = "entity_registry_updated"

// Bus is the subset of the MQTT client the bridge needs.
type Bus interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// CallResult is published on the result topic for every service call.
type CallResult struct {
	RequestID string `json:"request_id"`
	Service   string `json:"service"`
	Success   bool   `json:"success"`
	Result    any    `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RegistryUpdatedEvent is the payload of the registry-updated event.
type RegistryUpdatedEvent struct {
	Source    string    `json:"source"`
	EntityIDs []string  `json:"entity_ids"`
	Timestamp time.Time `json:"timestamp"`
}

// BusBridge exposes a Service on the MQTT bus. It handles export and import
// service calls, publishes their results, and doubles as the service's
// Notifier and EventPublisher.
type BusBridge struct {
	svc    *Service
	bus    Bus
	qos    byte
	logger Logger
	topics mqtt.Topics

	// ctx bounds the runs triggered by bus messages.
	ctx context.Context
}

// NewBusBridge creates a bridge. Call Start to subscribe.
func NewBusBridge(ctx context.Context, svc *Service, bus Bus, qos byte) *BusBridge {
	return &BusBridge{
		svc:    svc,
		bus:    bus,
		qos:    qos,
		logger: noopLogger{},
		ctx:    ctx,
	}
}

// SetLogger sets the logger for the bridge.
func (b *BusBridge) SetLogger(logger Logger) { b.logger = loggerOrNoop(logger) }

// Start subscribes to the export and import service topics.
func (b *BusBridge) Start() error {
	for _, service := range []string{OperationExport, OperationImport} {
		topic := b.topics.ServiceCall(BusDomain, service)
		if err := b.bus.Subscribe(topic, b.qos, b.handler(service)); err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		b.logger.Info("listening for service calls", "topic", topic)
	}
	return nil
}

// Stop unsubscribes from the service topics.
func (b *BusBridge) Stop() {
	for _, service := range []string{OperationExport, OperationImport} {
		if err := b.bus.Unsubscribe(b.topics.ServiceCall(BusDomain, service)); err != nil {
			b.logger.Debug("unsubscribe failed", "service", service, "error", err)
		}
	}
}

// callEnvelope carries the routing fields of a service-call body.
type callEnvelope struct {
	RequestID string `json:"request_id"`
}

func (b *BusBridge) handler(service string) mqtt.MessageHandler {
	return func(_ string, payload []byte) error {
		var env callEnvelope
		if len(payload) > 0 {
			_ = json.Unmarshal(payload, &env) //nolint:errcheck // Re-decoded by Call
		}
		if id := resultTopicID(env.RequestID); id != env.RequestID {
			if env.RequestID != "" {
				b.logger.Warn("request id unusable as topic level, replaced",
					"service", service, "request_id", id)
			}
			env.RequestID = id
		}

		res := CallResult{RequestID: env.RequestID, Service: service}
		result, err := b.svc.Call(WithSource(b.ctx, SourceBus), service, payload)
		if err != nil {
			res.Error = err.Error()
			b.logger.Warn("service call failed", "service", service, "request_id", env.RequestID, "error", err)
		} else {
			res.Success = true
			res.Result = result
		}

		return b.publishJSON(b.topics.ServiceResult(BusDomain, env.RequestID), res)
	}
}

// maxRequestIDLength bounds a caller-supplied request id.
const maxRequestIDLength = 128

// resultTopicID returns id when it can stand as a single level of the result
// topic, and a fresh UUID otherwise. A level must not contain separators,
// wildcards or NUL.
func resultTopicID(id string) string {
	if id == "" || len(id) > maxRequestIDLength || !utf8.ValidString(id) ||
		strings.ContainsAny(id, "/+#\x00") {
		return uuid.NewString()
	}
	return id
}

// Notify publishes a notification on the core notification topic.
func (b *BusBridge) Notify(_ context.Context, n Notification) error {
	return b.publishJSON(b.topics.CoreNotification(BusDomain), n)
}

// PublishRegistryUpdated publishes the registry-updated core event.
func (b *BusBridge) PublishRegistryUpdated(_ context.Context, entityIDs []string) error {
	return b.publishJSON(b.topics.CoreEvent(EventRegistryUpdated), RegistryUpdatedEvent{
		Source:    BusDomain,
		EntityIDs: entityIDs,
		Timestamp: time.Now().UTC(),
	})
}

func (b *BusBridge) publishJSON(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", topic, err)
	}
	if err := b.bus.Publish(topic, payload, b.qos, false); err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}
