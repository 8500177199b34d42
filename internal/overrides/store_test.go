package overrides

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseStore_Layouts(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, s Store)
	}{
		{
			name:  "empty document",
			input: "",
			check: func(t *testing.T, s Store) {
				if len(s) != 0 {
					t.Errorf("len = %d, want 0", len(s))
				}
			},
		},
		{
			name: "flat mapping",
			input: `
light.kitchen:
  friendly_name: Cooker Light
  visible: false
switch.fan:
  enabled: false
sensor.outdoor: {}
`,
			check: func(t *testing.T, s Store) {
				if len(s) != 3 {
					t.Fatalf("len = %d, want 3", len(s))
				}
				k := s["light.kitchen"]
				if k.FriendlyName == nil || *k.FriendlyName != "Cooker Light" || k.Visible == nil || *k.Visible {
					t.Errorf("light.kitchen = %+v", k)
				}
				if k.Enabled != nil {
					t.Error("light.kitchen enabled should be absent")
				}
				if f := s["switch.fan"]; f.Enabled == nil || *f.Enabled {
					t.Errorf("switch.fan = %+v", f)
				}
				if !s["sensor.outdoor"].IsEmpty() {
					t.Errorf("sensor.outdoor should be empty")
				}
			},
		},
		{
			name:  "null record is empty",
			input: "light.kitchen:\n",
			check: func(t *testing.T, s Store) {
				rec, ok := s["light.kitchen"]
				if !ok || !rec.IsEmpty() {
					t.Errorf("light.kitchen = %+v, present=%v", rec, ok)
				}
			},
		},
		{
			name:  "non entity keys ignored",
			input: "version: 1\nnotes: hello\nlight.kitchen: {}\n",
			check: func(t *testing.T, s Store) {
				if len(s) != 1 {
					t.Errorf("store = %v, want only light.kitchen", s)
				}
			},
		},
		{
			name: "envelope",
			input: `
version: 1
generated_at: "2026-03-01T12:00:00Z"
entities:
  light.kitchen:
    name: Cooker Light
    hidden: true
    disabled: false
    area_id: kitchen
`,
			check: func(t *testing.T, s Store) {
				k, ok := s["light.kitchen"]
				if !ok {
					t.Fatal("light.kitchen missing")
				}
				if *k.FriendlyName != "Cooker Light" || *k.Visible || !*k.Enabled || *k.Area != "kitchen" {
					t.Errorf("light.kitchen = %+v", k)
				}
			},
		},
		{
			name: "legacy block",
			input: `
entity_overrides:
  switch.fan:
    friendly_name: Ceiling Fan
    hidden: false
`,
			check: func(t *testing.T, s Store) {
				f := s["switch.fan"]
				if *f.FriendlyName != "Ceiling Fan" || f.Visible == nil || !*f.Visible {
					t.Errorf("switch.fan = %+v", f)
				}
			},
		},
		{
			name:  "explicit fields win over aliases",
			input: "light.x:\n  visible: true\n  hidden: true\n",
			check: func(t *testing.T, s Store) {
				if v := s["light.x"].Visible; v == nil || !*v {
					t.Errorf("visible = %v, want true", v)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseStore([]byte(tt.input))
			if err != nil {
				t.Fatalf("ParseStore() error = %v", err)
			}
			tt.check(t, s)
		})
	}
}

func TestParseStore_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"broken yaml", "light.kitchen: [unclosed"},
		{"top level list", "- light.kitchen\n"},
		{"scalar record", "light.kitchen: yes\n"},
		{"wrong field type", "light.kitchen:\n  enabled: sometimes\n"},
		{"invalid id in envelope", "version: 1\nentities:\n  kitchen: {}\n"},
		{"invalid id in legacy block", "entity_overrides:\n  a.b.c: {}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStore([]byte(tt.input))
			if !errors.Is(err, ErrMalformedStore) {
				t.Errorf("ParseStore() error = %v, want ErrMalformedStore", err)
			}
		})
	}
}

func TestMarshalStore_SortedFlat(t *testing.T) {
	name := "Cooker"
	off := false
	s := Store{
		"switch.fan":    {Enabled: &off},
		"light.kitchen": {FriendlyName: &name},
		"binary.door":   {},
	}

	data, err := MarshalStore(s)
	if err != nil {
		t.Fatalf("MarshalStore() error = %v", err)
	}
	out := string(data)

	iDoor := strings.Index(out, "binary.door")
	iKitchen := strings.Index(out, "light.kitchen")
	iFan := strings.Index(out, "switch.fan")
	if iDoor >= iKitchen || iKitchen >= iFan {
		t.Errorf("keys not sorted:\n%s", out)
	}
	if !strings.Contains(out, "binary.door: {}") {
		t.Errorf("empty record not written as {}:\n%s", out)
	}
	if strings.Contains(out, "visible") {
		t.Errorf("absent fields must be omitted:\n%s", out)
	}

	back, err := ParseStore(data)
	if err != nil {
		t.Fatalf("ParseStore(MarshalStore()) error = %v", err)
	}
	if len(back) != 3 || *back["light.kitchen"].FriendlyName != "Cooker" || *back["switch.fan"].Enabled {
		t.Errorf("reparsed store = %+v", back)
	}

	empty, _ := MarshalStore(nil)
	if string(empty) != "{}\n" {
		t.Errorf("MarshalStore(nil) = %q, want {}", empty)
	}
}

func TestLoadStore(t *testing.T) {
	dir := t.TempDir()

	s, found, err := LoadStore(filepath.Join(dir, "missing.yaml"))
	if err != nil || found || len(s) != 0 {
		t.Errorf("LoadStore(missing) = (%v, %v, %v), want empty, false, nil", s, found, err)
	}

	path := filepath.Join(dir, "overrides.yaml")
	if err := os.WriteFile(path, []byte("light.x: {}\n"), 0600); err != nil {
		t.Fatal(err)
	}
	s, found, err = LoadStore(path)
	if err != nil || !found || len(s) != 1 {
		t.Errorf("LoadStore() = (%v, %v, %v)", s, found, err)
	}
}

func TestAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "overrides.yaml")

	if err := atomicWrite(path, []byte("first\n")); err != nil {
		t.Fatalf("atomicWrite() error = %v", err)
	}
	if err := atomicWrite(path, []byte("second\n")); err != nil {
		t.Fatalf("atomicWrite() error = %v", err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "second\n" {
		t.Errorf("content = %q, want second", got)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestAtomicWrite_FailureKeepsTarget(t *testing.T) {
	dir := t.TempDir()

	// A directory in place of the target makes the rename fail.
	target := filepath.Join(dir, "overrides.yaml")
	if err := os.Mkdir(target, 0750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(target, "keep"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	err := atomicWrite(target, []byte("new\n"))
	if !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("atomicWrite() error = %v, want ErrWriteFailed", err)
	}
	if info, err := os.Stat(target); err != nil || !info.IsDir() {
		t.Error("target was replaced")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestPaths_Resolve(t *testing.T) {
	p := Paths{BaseDir: "/data/eo"}
	tests := []struct {
		in, want string
	}{
		{"", "/data/eo/overrides.yaml"},
		{"custom.yaml", "/data/eo/custom.yaml"},
		{"sub/x.yaml", "/data/eo/sub/x.yaml"},
		{"backups/overrides-20260301-120000.yaml", "/data/eo/backups/overrides-20260301-120000.yaml"},
		{"sub/../y.yaml", "/data/eo/y.yaml"},
	}
	for _, tt := range tests {
		got, err := p.Resolve(tt.in)
		if err != nil {
			t.Errorf("Resolve(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if p.Backups() != "/data/eo/backups" || p.Options() != "/data/eo/options.yaml" {
		t.Errorf("Backups()=%q Options()=%q", p.Backups(), p.Options())
	}
}

func TestPaths_ResolveRejectsEscapes(t *testing.T) {
	p := Paths{BaseDir: "/data/eo"}
	for _, in := range []string{
		"/etc/passwd",
		"/data/eo/overrides.yaml",
		"..",
		"../eo2/x.yaml",
		"sub/../../x.yaml",
		".",
		"options.yaml",
		"./sub/../options.yaml",
	} {
		t.Run(in, func(t *testing.T) {
			got, err := p.Resolve(in)
			if !errors.Is(err, ErrInvalidPath) {
				t.Errorf("Resolve(%q) = %q, %v; want ErrInvalidPath", in, got, err)
			}
		})
	}
}
