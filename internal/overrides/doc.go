// Package overrides exports the user-editable parts of the entity registry
// to a YAML file and applies that file back onto the registry.
//
// Storage layout under the base directory:
//
//	overrides.yaml                         canonical override store
//	options.yaml                           persisted service options
//	backups/overrides-YYYYMMDD-HHMMSS.yaml timestamped export snapshots
//
// The canonical file is a flat mapping from entity ID to an override record:
//
//	light.kitchen:
//	  friendly_name: Cooker Light
//	  visible: false
//	switch.fan:
//	  enabled: false
//	sensor.outdoor_temp: {}
//
// Exports always replace overrides.yaml through a temp file and rename, add
// a backup and prune the oldest backups beyond the retention count. Imports
// parse and validate the whole file before touching the registry, then apply
// each record in merge mode (only the fields present) or replace mode (absent
// fields reset to registry defaults).
//
// The Service type ties these together with persisted options, the startup
// hook, notifications and run metrics. Transport surfaces (MQTT, HTTP, CLI)
// call into Service.
package overrides
