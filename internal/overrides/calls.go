package overrides

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownService is returned for service calls this package does not offer.
var ErrUnknownService = errors.New("overrides: unknown service")

// Call decodes a JSON service-call body and runs the named service.
//
// An empty body runs the service with its defaults. Unknown JSON fields are
// ignored so callers can add routing data such as a request ID.
//
// Returns:
//   - any: *ExportResult or *ImportResult
//   - error: ErrUnknownService, a decode error or the run error
func (s *Service) Call(ctx context.Context, service string, body []byte) (any, error) {
	switch service {
	case OperationExport:
		req := DefaultExportRequest()
		if err := decodeCallBody(body, &req); err != nil {
			return nil, err
		}
		return s.Export(ctx, req)
	case OperationImport:
		req := DefaultImportRequest()
		if err := decodeCallBody(body, &req); err != nil {
			return nil, err
		}
		return s.Import(ctx, req)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownService, service)
	}
}

func decodeCallBody(body []byte, v any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding service call: %w", err)
	}
	return nil
}
