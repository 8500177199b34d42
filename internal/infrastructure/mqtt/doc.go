// Package mqtt connects the overrides service to the host's MQTT bus.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing service-call results, notifications and events
//   - Service-call subscriptions, restored after reconnects
//   - Last Will and Testament (LWT) for offline detection
//
// Topics used by the overrides service:
//
//	graylogic/service/entity_overrides/export_overrides   service call (in)
//	graylogic/service/entity_overrides/import_overrides   service call (in)
//	graylogic/service/entity_overrides/result/{id}        call result (out)
//	graylogic/core/notification/entity_overrides          notification (out)
//	graylogic/core/event/entity_registry_updated          event (out)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, log.With("component", "mqtt"))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.CoreEvent("entity_registry_updated")
//	err = client.Publish(topic, payload, client.QoS(), false)
package mqtt
