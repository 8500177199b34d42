package overrides

import (
	"sort"
	"strings"

	"github.com/nerrad567/gray-logic-overrides/internal/registry"
)

// Record is the override for a single entity. A nil field means "no
// override". An empty string for FriendlyName, Icon or Area clears the
// corresponding registry attribute.
type Record struct {
	FriendlyName *string `yaml:"friendly_name,omitempty" json:"friendly_name,omitempty"`
	Enabled      *bool   `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Visible      *bool   `yaml:"visible,omitempty" json:"visible,omitempty"`
	Icon         *string `yaml:"icon,omitempty" json:"icon,omitempty"`

	// Area holds an area ID or an area name.
	Area *string `yaml:"area,omitempty" json:"area,omitempty"`
}

// IsEmpty reports whether the record carries no override at all.
func (r Record) IsEmpty() bool {
	return r.FriendlyName == nil && r.Enabled == nil && r.Visible == nil && r.Icon == nil && r.Area == nil
}

// Store maps entity IDs to their override records.
type Store map[string]Record

// EntityIDs returns the store's keys in sorted order.
func (s Store) EntityIDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RecordFor captures the deviations of a registry entry from its defaults.
// An entry with no user changes yields an empty record.
func RecordFor(e registry.Entry) Record {
	var r Record
	if e.Name != "" {
		r.FriendlyName = registry.Ptr(e.Name)
	}
	if e.Hidden() {
		r.Visible = registry.Ptr(false)
	}
	if e.Disabled() {
		r.Enabled = registry.Ptr(false)
	}
	if e.Icon != "" {
		r.Icon = registry.Ptr(e.Icon)
	}
	if e.AreaID != "" {
		r.Area = registry.Ptr(e.AreaID)
	}
	return r
}

// BuildStore turns registry entries into a store.
//
// domains is a case-insensitive allow-list of entity domains; empty means
// every domain. With onlyOverridden set, entries without deviations are left
// out; otherwise they appear as empty records.
func BuildStore(entries []registry.Entry, domains []string, onlyOverridden bool) Store {
	allow := domainSet(domains)
	store := make(Store, len(entries))
	for _, e := range entries {
		if len(allow) > 0 && !allow[strings.ToLower(e.Domain())] {
			continue
		}
		rec := RecordFor(e)
		if onlyOverridden && rec.IsEmpty() {
			continue
		}
		store[e.EntityID] = rec
	}
	return store
}

// NormalizeDomains lower-cases, trims and de-duplicates a domain list and
// returns it sorted. Blank entries are dropped.
func NormalizeDomains(domains []string) []string {
	set := domainSet(domains)
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func domainSet(domains []string) map[string]bool {
	set := make(map[string]bool, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			set[d] = true
		}
	}
	return set
}
