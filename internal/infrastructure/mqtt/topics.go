package mqtt

import "fmt"

// Topic prefixes of the Gray Logic bus.
const (
	// TopicPrefixCore is the base for core notifications and events.
	TopicPrefixCore = "graylogic/core"

	// TopicPrefixService is the base for service calls handled by plugins.
	TopicPrefixService = "graylogic/service"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "graylogic/system"
)

// Topics provides builders for Gray Logic MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.ServiceCall("entity_overrides", "export_overrides")
//	// Returns: "graylogic/service/entity_overrides/export_overrides"
type Topics struct{}

// ServiceCall returns the topic a plugin listens on for one of its services.
//
// Example: graylogic/service/entity_overrides/import_overrides
func (Topics) ServiceCall(domain, service string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixService, domain, service)
}

// ServiceResult returns the topic a service call result is published on.
//
// Example: graylogic/service/entity_overrides/result/3f1c...
func (Topics) ServiceResult(domain, requestID string) string {
	return fmt.Sprintf("%s/%s/result/%s", TopicPrefixService, domain, requestID)
}

// CoreNotification returns the topic for user notifications from a source.
//
// Example: graylogic/core/notification/entity_overrides
func (Topics) CoreNotification(source string) string {
	return fmt.Sprintf("%s/notification/%s", TopicPrefixCore, source)
}

// CoreEvent returns the topic for a core event type.
//
// Example: graylogic/core/event/entity_registry_updated
func (Topics) CoreEvent(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixCore, eventType)
}

// SystemStatus returns the topic for online/offline status (LWT).
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}
