package overrides

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-overrides/internal/audit"
	"github.com/nerrad567/gray-logic-overrides/internal/registry"
)

// Operation names used in notifications, metrics and service calls.
const (
	OperationExport = "export_overrides"
	OperationImport = "import_overrides"
)

// Run sources recorded in the run history.
const (
	SourceStartup = "startup"
	SourceAPI     = "api"
	SourceBus     = "bus"
	SourceCLI     = "cli"
	SourceOptions = "options"
)

type sourceKey struct{}

// WithSource tags ctx with what triggered a run.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFrom returns the run source stored by WithSource, or "unknown".
func SourceFrom(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
		return s
	}
	return "unknown"
}

// Notification levels.
const (
	LevelInfo  = "info"
	LevelError = "error"
)

// Notification is a user-facing message about an export or import run.
type Notification struct {
	Operation string    `json:"operation"`
	Level     string    `json:"level"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier delivers notifications to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// EventPublisher announces registry changes made by an import.
type EventPublisher interface {
	PublishRegistryUpdated(ctx context.Context, entityIDs []string) error
}

// MetricsWriter records one point per export or import run.
// Compatible with influxdb.Client.
type MetricsWriter interface {
	WriteRunMetric(operation string, success bool, fields map[string]any)
}

// Config contains the static service settings.
type Config struct {
	// Paths is the storage layout.
	Paths Paths

	// Defaults seed the options until options.yaml is written.
	Defaults Options

	// ExportOnStartup runs an export from Start, after any auto import.
	ExportOnStartup bool
}

// Service owns the override options and runs exports and imports on
// request or at startup.
//
// Runs are not serialised: overlapping triggers each complete, and the last
// write to a file or registry attribute wins.
type Service struct {
	registry registry.Adapter
	cfg      Config
	clock    Clock
	logger   Logger

	notifier Notifier
	events   EventPublisher
	metrics  MetricsWriter
	history  audit.Repository

	mu   sync.RWMutex
	opts Options
}

// NewService creates a service and loads the persisted options.
//
// Parameters:
//   - adapter: the host entity registry
//   - cfg: storage layout and option defaults
//
// Returns:
//   - *Service: ready to Start
//   - error: if the defaults or the options file are invalid
func NewService(adapter registry.Adapter, cfg Config) (*Service, error) {
	defaults := cfg.Defaults
	if err := defaults.Validate(); err != nil {
		return nil, err
	}
	opts, err := LoadOptions(cfg.Paths.Options(), defaults)
	if err != nil {
		return nil, err
	}
	return &Service{
		registry: adapter,
		cfg:      cfg,
		clock:    RealClock{},
		logger:   noopLogger{},
		opts:     opts,
	}, nil
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) { s.logger = loggerOrNoop(logger) }

// SetClock replaces the time source used for backup names.
func (s *Service) SetClock(c Clock) { s.clock = c }

// SetNotifier sets where notifications are delivered. Nil disables them.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// SetEventPublisher sets where registry-updated events go. Nil disables them.
func (s *Service) SetEventPublisher(p EventPublisher) { s.events = p }

// SetMetrics sets the run metrics sink. Nil disables metrics.
func (s *Service) SetMetrics(m MetricsWriter) { s.metrics = m }

// SetHistory sets where runs are recorded. Nil disables the run history.
func (s *Service) SetHistory(h audit.Repository) { s.history = h }

// Paths returns the storage layout.
func (s *Service) Paths() Paths { return s.cfg.Paths }

// Options returns a copy of the current options.
func (s *Service) Options() Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	opts := s.opts
	opts.ExportDomains = append([]string(nil), s.opts.ExportDomains...)
	return opts
}

// UpdateOptions validates and persists new options. When exportNow is set an
// export runs with the new options and a notification reports the outcome;
// exportNow itself is never stored.
//
// Returns:
//   - *ExportResult: the export result when exportNow is set, else nil
//   - error: ErrInvalidOptions, a persistence error or the export error
func (s *Service) UpdateOptions(ctx context.Context, opts Options, exportNow bool) (*ExportResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := s.cfg.Paths.Ensure(); err != nil {
		return nil, err
	}
	if err := SaveOptions(s.cfg.Paths.Options(), opts); err != nil {
		return nil, fmt.Errorf("saving options: %w", err)
	}

	s.mu.Lock()
	s.opts = opts
	s.mu.Unlock()
	s.logger.Info("options updated",
		"auto_import_on_startup", opts.AutoImportOnStartup,
		"backup_retention", opts.BackupRetention,
		"export_all_entities", opts.ExportAllEntities,
		"export_domains", opts.ExportDomains,
	)

	if !exportNow {
		return nil, nil
	}
	result, err := s.Export(WithSource(ctx, SourceOptions), DefaultExportRequest())
	if err != nil {
		s.notify(ctx, OperationExport, LevelError, "Entity overrides export failed", err.Error())
		return nil, err
	}
	s.notify(ctx, OperationExport, LevelInfo, "Entity overrides exported",
		fmt.Sprintf("Exported %d entities to %s", result.Entities, result.OverridesPath))
	return result, nil
}

// Start is the startup hook. It creates the storage directories, runs a merge
// import when auto_import_on_startup is set, and an export when configured.
// Run failures are logged and notified but do not fail startup.
func (s *Service) Start(ctx context.Context) error {
	ctx = WithSource(ctx, SourceStartup)
	if err := s.cfg.Paths.Ensure(); err != nil {
		return err
	}

	if s.Options().AutoImportOnStartup {
		if _, err := s.Import(ctx, DefaultImportRequest()); err != nil {
			s.logger.Error("startup import failed", "error", err)
			s.notify(ctx, OperationImport, LevelError, "Entity overrides import failed", err.Error())
		}
	}

	if s.cfg.ExportOnStartup {
		if _, err := s.Export(ctx, DefaultExportRequest()); err != nil {
			s.logger.Error("startup export failed", "error", err)
			s.notify(ctx, OperationExport, LevelError, "Entity overrides export failed", err.Error())
		}
	}
	return nil
}

// Export runs an export. An empty IncludeDomains uses the export_domains
// option; an unset OnlyOverridden follows export_all_entities.
func (s *Service) Export(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	opts := s.Options()
	if len(req.IncludeDomains) == 0 {
		req.IncludeDomains = opts.ExportDomains
	}

	exp := &Exporter{
		Registry:       s.registry,
		Paths:          s.cfg.Paths,
		Clock:          s.clock,
		Retention:      opts.BackupRetention,
		OnlyOverridden: !opts.ExportAllEntities,
		Logger:         s.logger,
	}

	start := time.Now()
	result, err := exp.Export(ctx, req)
	fields := map[string]any{"duration_ms": time.Since(start).Milliseconds()}
	if result != nil {
		fields["entities"] = result.Entities
		fields["pruned"] = len(result.Pruned)
	}
	s.writeMetric(OperationExport, err == nil, fields)
	s.recordRun(ctx, OperationExport, err, fields)
	if err != nil {
		return nil, fmt.Errorf("exporting overrides: %w", err)
	}
	return result, nil
}

// Import runs an import and announces changed entities.
func (s *Service) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	imp := &Importer{
		Registry: s.registry,
		Paths:    s.cfg.Paths,
		Logger:   s.logger,
	}

	start := time.Now()
	result, err := imp.Import(ctx, req)
	fields := map[string]any{"duration_ms": time.Since(start).Milliseconds()}
	if result != nil {
		fields["updated"] = result.Updated
		fields["skipped"] = result.Skipped
	}
	s.writeMetric(OperationImport, err == nil, fields)
	s.recordRun(ctx, OperationImport, err, fields)

	// A failed update can follow successful ones; announce those too.
	if result != nil && len(result.EntityIDs) > 0 && s.events != nil {
		if perr := s.events.PublishRegistryUpdated(ctx, result.EntityIDs); perr != nil {
			s.logger.Warn("failed to publish registry update", "error", perr)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("importing overrides: %w", err)
	}
	return result, nil
}

// Domains returns the distinct entity domains in the registry, sorted.
func (s *Service) Domains(ctx context.Context) ([]string, error) {
	entries, err := s.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	seen := make(map[string]bool)
	var domains []string
	for _, e := range entries {
		d := strings.ToLower(e.Domain())
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains, nil
}

// History returns recorded runs, most recent first. Without a history
// repository the result is empty.
func (s *Service) History(ctx context.Context, filter audit.Filter) (*audit.ListResult, error) {
	if s.history == nil {
		return &audit.ListResult{Runs: []audit.Run{}, Limit: filter.Limit, Offset: filter.Offset}, nil
	}
	result, err := s.history.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing run history: %w", err)
	}
	return result, nil
}

// Backups returns the retained backups, newest first.
func (s *Service) Backups() ([]Backup, error) {
	return ListBackups(s.cfg.Paths.Backups())
}

func (s *Service) notify(ctx context.Context, op, level, title, message string) {
	if s.notifier == nil {
		return
	}
	n := Notification{
		Operation: op,
		Level:     level,
		Title:     title,
		Message:   message,
		Timestamp: s.clock.Now().UTC(),
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("failed to send notification", "operation", op, "error", err)
	}
}

func (s *Service) writeMetric(op string, success bool, fields map[string]any) {
	if s.metrics == nil {
		return
	}
	s.metrics.WriteRunMetric(op, success, fields)
}

// recordRun appends a run to the history. Failures are logged only; the run
// itself has already happened.
func (s *Service) recordRun(ctx context.Context, op string, runErr error, fields map[string]any) {
	if s.history == nil {
		return
	}
	run := &audit.Run{
		Operation: op,
		Source:    SourceFrom(ctx),
		Success:   runErr == nil,
		Details:   fields,
		CreatedAt: s.clock.Now().UTC(),
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	// The run may have been cut short by cancellation; still record it.
	if err := s.history.Create(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Warn("failed to record run", "operation", op, "error", err)
	}
}
