// Package api implements the HTTP maintenance API for the entity overrides service.
//
// This package provides:
//   - Export and import endpoints that run the same operations as the service calls
//   - Read-only views of the retained backups, the registry's entity domains
//     and the export/import run history
//   - Reading and updating the persisted options, with a one-shot export trigger
//   - A health endpoint reporting the database, bus and metrics connections
//   - Middleware stack (request ID, logging, recovery, body size limit, bearer auth)
//
// # Error Mapping
//
// Errors from the overrides package are mapped to HTTP status codes:
//
//	ErrInvalidOptions, ErrUnknownEntity, ErrInvalidPath -> 422 validation_error
//	ErrMalformedStore                                   -> 400 bad_request
//	anything else                                       -> 500 internal_error
//
// # Authentication
//
// When api.auth.jwt_secret is set, every /api/v1/overrides route requires an
// HS256 bearer token from the auth package; /api/v1/health stays open. File
// paths in export and import requests are always confined to the storage
// directory.
package api
