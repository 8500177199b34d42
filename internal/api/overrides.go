package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-overrides/internal/audit"
	"github.com/nerrad567/gray-logic-overrides/internal/overrides"
)

// updateOptionsRequest is the body of PUT /overrides/options. Omitted option
// fields keep their current value.
type updateOptionsRequest struct {
	overrides.Options

	// ExportNow runs an export with the new options. It is not persisted.
	ExportNow bool `json:"export_now"`
}

// handleExport runs an export. An empty body exports with the current options.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	req := overrides.DefaultExportRequest()
	if err := decodeOptionalBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	result, err := s.service.Export(overrides.WithSource(r.Context(), overrides.SourceAPI), req)
	if err != nil {
		s.logger.Error("export failed",
			"error", err,
			"request_id", requestIDFrom(r.Context()),
			"subject", subjectFrom(r.Context()),
		)
		writeServiceError(w, err, "export failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleImport runs an import. An empty body runs a merge import of the
// canonical file.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	req := overrides.DefaultImportRequest()
	if err := decodeOptionalBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	result, err := s.service.Import(overrides.WithSource(r.Context(), overrides.SourceAPI), req)
	if err != nil {
		s.logger.Error("import failed",
			"error", err,
			"request_id", requestIDFrom(r.Context()),
			"subject", subjectFrom(r.Context()),
		)
		writeServiceError(w, err, "import failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleListBackups returns the retained backups, newest first.
func (s *Server) handleListBackups(w http.ResponseWriter, _ *http.Request) {
	backups, err := s.service.Backups()
	if err != nil {
		s.logger.Error("listing backups failed", "error", err)
		writeInternalError(w, "failed to list backups")
		return
	}
	if backups == nil {
		backups = []overrides.Backup{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"backups": backups, "count": len(backups)})
}

// handleListDomains returns the entity domains present in the registry.
func (s *Server) handleListDomains(w http.ResponseWriter, r *http.Request) {
	domains, err := s.service.Domains(r.Context())
	if err != nil {
		s.logger.Error("listing domains failed", "error", err)
		writeInternalError(w, "failed to list domains")
		return
	}
	if domains == nil {
		domains = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"domains": domains, "count": len(domains)})
}

// handleListHistory returns recorded runs, most recent first.
// Query parameters: operation, source, limit, offset.
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{
		Operation: q.Get("operation"),
		Source:    q.Get("source"),
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeBadRequest(w, "limit must be an integer")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeBadRequest(w, "offset must be an integer")
		return
	}

	result, err := s.service.History(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing run history failed", "error", err)
		writeInternalError(w, "failed to list run history")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// intParam parses an optional integer query parameter.
func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

// handleGetOptions returns the current options.
func (s *Server) handleGetOptions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Options())
}

// handleUpdateOptions persists new options and optionally exports right away.
func (s *Server) handleUpdateOptions(w http.ResponseWriter, r *http.Request) {
	req := updateOptionsRequest{Options: s.service.Options()}
	if err := decodeOptionalBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	result, err := s.service.UpdateOptions(overrides.WithSource(r.Context(), overrides.SourceAPI), req.Options, req.ExportNow)
	if err != nil {
		s.logger.Error("updating options failed",
			"error", err,
			"request_id", requestIDFrom(r.Context()),
			"subject", subjectFrom(r.Context()),
		)
		writeServiceError(w, err, "failed to update options")
		return
	}

	s.logger.Info("options updated",
		"export_now", req.ExportNow,
		"request_id", requestIDFrom(r.Context()),
		"subject", subjectFrom(r.Context()),
	)

	resp := map[string]any{"options": s.service.Options()}
	if result != nil {
		resp["export"] = result
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeOptionalBody decodes a JSON body onto v. An empty body leaves v unchanged.
func decodeOptionalBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("reading request body: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
