package models

import (
	"encoding/json"
	"fmt"
)

// NoOverridesSummary is the report summary when nothing was configured.
const NoOverridesSummary = "No spoofing values have been set up yet."

// VerificationEntry compares one configured override with what the identity
// surface returns now.
type VerificationEntry struct {
	Key      AttributeKey `json:"key"`
	Name     string       `json:"name"`
	Expected string       `json:"expected"`
	Observed string       `json:"observed"`
}

// Passed reports whether the surface returned the configured value.
func (e VerificationEntry) Passed() bool {
	return e.Expected == e.Observed
}

func (e VerificationEntry) MarshalJSON() ([]byte, error) {
	type plain VerificationEntry
	return json.Marshal(struct {
		plain
		Passed bool `json:"passed"`
	}{plain(e), e.Passed()})
}

// VerificationReport lists entries in declared attribute order.
type VerificationReport struct {
	Entries []VerificationEntry
}

// PassedCount returns how many entries observed their expected value.
func (r VerificationReport) PassedCount() int {
	n := 0
	for _, e := range r.Entries {
		if e.Passed() {
			n++
		}
	}
	return n
}

// AllPassed is the conjunction of every entry. A report without entries passes.
func (r VerificationReport) AllPassed() bool {
	return r.PassedCount() == len(r.Entries)
}

// Summary renders "P/N values spoofed correctly", or NoOverridesSummary.
func (r VerificationReport) Summary() string {
	if len(r.Entries) == 0 {
		return NoOverridesSummary
	}
	return fmt.Sprintf("%d/%d values spoofed correctly", r.PassedCount(), len(r.Entries))
}

func (r VerificationReport) MarshalJSON() ([]byte, error) {
	entries := r.Entries
	if entries == nil {
		entries = []VerificationEntry{}
	}
	return json.Marshal(struct {
		Entries   []VerificationEntry `json:"entries"`
		AllPassed bool                `json:"all_passed"`
		Summary   string              `json:"summary"`
	}{entries, r.AllPassed(), r.Summary()})
}

// Observation is the value a surface currently returns for one attribute,
// regardless of whether an override is configured.
type Observation struct {
	Key        AttributeKey `json:"key"`
	Name       string       `json:"name"`
	Value      string       `json:"value"`
	Legibility string       `json:"legibility"`
}
