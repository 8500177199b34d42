// Package cli implements the entity-overrides command line.
//
// Every command loads the configuration (--config, GRAYLOGIC_CONFIG, or
// configs/config.yaml falling back to built-in defaults), opens the host
// registry database and runs one overrides operation:
//
//	entity-overrides serve            run the startup hook, bus and API until interrupted
//	entity-overrides export           write overrides.yaml and a backup
//	entity-overrides import           apply overrides.yaml to the registry
//	entity-overrides backups          list retained backups
//	entity-overrides domains          list entity domains in the registry
//	entity-overrides options [set]    show or change the persisted options
//	entity-overrides history          list recorded export and import runs
//
// Results go to stdout (plain, coloured on a TTY, or --json); logs go to stderr.
package cli
