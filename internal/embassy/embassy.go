// Package embassy holds the table of supported embassies: the locale prefix
// of their URLs, the consulate and CAS facility IDs, and the page texts used
// to detect the outcome of a login.
package embassy

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	yaml "go.yaml.in/yaml/v3"

	"github.com/example/visa-rescheduler/internal/domain/appointment"
)

//go:embed embassies.yaml
var tableYAML []byte

type Embassy struct {
	Code                     string `yaml:"-"`
	Locale                   string `yaml:"locale"`
	FacilityID               int    `yaml:"facility_id"`
	CASFacilityID            int    `yaml:"cas_facility_id"`
	ContinueMarker           string `yaml:"continue_marker"`
	InvalidCredentialsMarker string `yaml:"invalid_credentials_marker"`
}

func (e Embassy) Facilities() appointment.FacilityConfig {
	return appointment.FacilityConfig{
		PrimaryFacilityID:   e.FacilityID,
		SecondaryFacilityID: e.CASFacilityID,
		Locale:              e.Locale,
		LoginFailureMarker:  e.InvalidCredentialsMarker,
		ContinueMarker:      e.ContinueMarker,
	}
}

// Table is a parsed embassy table keyed by code (e.g. "es-co-bog").
type Table map[string]Embassy

// Parse decodes a YAML embassy table.
func Parse(b []byte) (Table, error) {
	raw := map[string]Embassy{}
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("embassy table: %w", err)
	}
	t := make(Table, len(raw))
	for code, e := range raw {
		code = strings.ToLower(strings.TrimSpace(code))
		e.Code = code
		if e.Locale == "" || e.FacilityID <= 0 || e.CASFacilityID <= 0 {
			return nil, fmt.Errorf("embassy %s: locale, facility_id and cas_facility_id are required", code)
		}
		t[code] = e
	}
	return t, nil
}

// Builtin returns the embedded table.
func Builtin() Table {
	t, err := Parse(tableYAML)
	if err != nil {
		panic(err)
	}
	return t
}

func (t Table) Lookup(code string) (Embassy, error) {
	e, ok := t[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		return Embassy{}, fmt.Errorf("unknown embassy %q", code)
	}
	return e, nil
}

func (t Table) Codes() []string {
	out := make([]string, 0, len(t))
	for c := range t {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
