package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type file struct {
	Tables map[string]Policy `yaml:"tables"`
}

// Defaults returns the registry used when no policy file is configured.
func Defaults() *Registry {
	r := NewRegistry()
	r.Register("customers", Policy{
		TimestampFields: []string{"birthday"},
		LocalOnly:       []string{"ui_selected"},
		NFC:             true,
	})
	r.Register("bookings", Policy{
		TimestampFields: []string{"travel_date", "return_date"},
		Defaults:        map[string]any{"status": "pending", "currency": "EUR", "pax": 1},
		NFC:             true,
	})
	r.Register("tours", Policy{NFC: true})
	r.Register("suppliers", Policy{NFC: true})
	r.Register("invoices", Policy{
		TimestampFields: []string{"paid_on"},
		Defaults:        map[string]any{"status": "draft", "currency": "EUR"},
	})
	return r
}

// Parse builds a registry from YAML. Tables present in the document replace
// the built-in policy of the same name; other built-in policies are kept.
func Parse(b []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	r := Defaults()
	for table, p := range f.Tables {
		r.Register(table, p)
	}
	return r, nil
}

// Load reads a YAML policy file. An empty path returns Defaults().
func Load(path string) (*Registry, error) {
	if path == "" {
		return Defaults(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return Parse(b)
}
