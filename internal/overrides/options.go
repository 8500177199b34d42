package overrides

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Options are the user-editable service settings. They are persisted in
// options.yaml and start from the values in the config file.
type Options struct {
	AutoImportOnStartup bool     `yaml:"auto_import_on_startup" json:"auto_import_on_startup"`
	BackupRetention     int      `yaml:"backup_retention" json:"backup_retention"`
	ExportAllEntities   bool     `yaml:"export_all_entities" json:"export_all_entities"`
	ExportDomains       []string `yaml:"export_domains" json:"export_domains"`
}

// Validate checks the options and normalises the domain list in place.
func (o *Options) Validate() error {
	var errs []string
	if o.BackupRetention < 0 {
		errs = append(errs, "backup_retention must not be negative")
	}
	for _, d := range o.ExportDomains {
		if strings.Contains(d, ".") {
			errs = append(errs, fmt.Sprintf("export_domains: %q is an entity id, not a domain", d))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidOptions, strings.Join(errs, "; "))
	}
	o.ExportDomains = NormalizeDomains(o.ExportDomains)
	return nil
}

// LoadOptions reads persisted options from path. Fields missing from the file
// keep the values in defaults; a missing file returns defaults unchanged.
func LoadOptions(path string, defaults Options) (Options, error) {
	opts := defaults
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return opts, nil
	}
	if err != nil {
		return defaults, fmt.Errorf("reading options: %w", err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return defaults, fmt.Errorf("parsing options: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return defaults, err
	}
	return opts, nil
}

// SaveOptions writes options to path atomically.
func SaveOptions(path string, opts Options) error {
	data, err := yaml.Marshal(opts)
	if err != nil {
		return fmt.Errorf("encoding options: %w", err)
	}
	return atomicWrite(path, data)
}
