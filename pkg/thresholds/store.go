package thresholds

import (
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"sort"
	"strings"
	"sync/atomic"
)

// ValidationError aggregates every validation failure found in a document.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Errors) == 0 {
		return "thresholds validation failed"
	}
	return fmt.Sprintf("thresholds validation failed: %s", strings.Join(e.Errors, "; "))
}

// ValidationReport is the outcome of validating a store.
type ValidationReport struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Store serves validated, mode-keyed threshold sets and the shared policy.
// Reload swaps a whole validated snapshot atomically, so in-flight
// requests always see one consistent version.
type Store struct {
	strict bool
	debug  bool
	snap   atomic.Pointer[snapshot]
}

type snapshot struct {
	sets   map[string]Set
	policy Policy
	report ValidationReport
}

// Option configures a Store.
type Option func(*Store)

// WithStrict makes validation failures abort loading instead of falling
// back to per-field defaults.
func WithStrict(strict bool) Option {
	return func(s *Store) { s.strict = strict }
}

// WithDebug enables debug logging.
func WithDebug(debug bool) Option {
	return func(s *Store) { s.debug = debug }
}

// New creates a store serving only the built-in defaults.
func New(opts ...Option) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	snap := buildSnapshot(&Document{Modes: map[string]RawSet{}}, false)
	s.snap.Store(snap)
	return s
}

// Load parses, merges, and validates a threshold document. Under strict
// validation any error aborts; otherwise failing fields fall back to the
// documented defaults and the store stays usable.
func Load(data []byte, lookup Overrides, opts ...Option) (*Store, error) {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Reload(data, lookup); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadFile loads a threshold document from a YAML file.
func LoadFile(path string, lookup Overrides, opts ...Option) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read thresholds file: %w", err)
	}
	return Load(data, lookup, opts...)
}

// Reload replaces the active snapshot with a freshly validated one. On
// error the previous snapshot stays active. A malformed override leaves
// its field at the merged default and is recorded in the report; only a
// strict store treats that as fatal.
func (s *Store) Reload(data []byte, lookup Overrides) error {
	doc, err := ParseDocument(data)
	if err != nil {
		return err
	}

	var overrideErrs []string
	if err := doc.ApplyOverrides(lookup); err != nil {
		var verr *ValidationError
		if !errors.As(err, &verr) {
			return err
		}
		overrideErrs = verr.Errors
		if s.debug {
			log.Printf("[thresholds] %d override error(s), affected fields keep their defaults", len(overrideErrs))
		}
	}

	snap := buildSnapshot(doc, s.debug)
	if len(overrideErrs) > 0 {
		snap.report.Errors = append(overrideErrs, snap.report.Errors...)
		snap.report.Valid = false
	}
	if s.strict && !snap.report.Valid {
		return &ValidationError{Errors: snap.report.Errors}
	}

	s.snap.Store(snap)
	return nil
}

// Set returns the threshold set for a mode. Unknown modes get the
// documented built-in defaults; this never fails.
func (s *Store) Set(mode string) Set {
	snap := s.snap.Load()
	if set, ok := snap.sets[mode]; ok {
		return set
	}
	return DefaultSet(mode)
}

// Policy returns the active shared policy.
func (s *Store) Policy() Policy {
	return s.snap.Load().policy
}

// Validate returns the validation report of the active snapshot.
func (s *Store) Validate() ValidationReport {
	return s.snap.Load().report
}

// ActiveModes returns the mode names in the active snapshot, sorted.
func (s *Store) ActiveModes() []string {
	snap := s.snap.Load()
	modes := make([]string, 0, len(snap.sets))
	for m := range snap.sets {
		modes = append(modes, m)
	}
	sort.Strings(modes)
	return modes
}

// buildSnapshot merges and validates a document. Fields that fail
// validation are replaced with defaults, so the snapshot is always
// internally consistent even when the report carries errors.
func buildSnapshot(doc *Document, debug bool) *snapshot {
	report := ValidationReport{Valid: true}

	sets := make(map[string]Set)
	for _, mode := range knownAndDocumentModes(doc) {
		merged := merge(mode, doc.Modes[mode])
		sets[mode] = validateSet(merged, &report, debug)
	}

	policy := mergePolicy(doc.Policy)
	policy = validatePolicy(policy, &report, debug)

	crossModeWarnings(sets, &report)

	if len(report.Errors) > 0 {
		report.Valid = false
	}
	return &snapshot{sets: sets, policy: policy, report: report}
}

// validateSet checks one mode's thresholds and substitutes defaults for
// failing fields.
func validateSet(s Set, report *ValidationReport, debug bool) Set {
	def := DefaultSet(s.Mode)

	check := func(name string, val *float64, fallback float64) {
		if *val >= 0 && *val <= 1 {
			return
		}
		report.Errors = append(report.Errors,
			fmt.Sprintf("%s.%s: %.4f out of [0,1]", s.Mode, name, *val))
		if debug {
			log.Printf("[thresholds] %s.%s out of range, using default %.2f", s.Mode, name, fallback)
		}
		*val = fallback
	}

	check("crisis_to_high", &s.CrisisToHigh, def.CrisisToHigh)
	check("crisis_to_medium", &s.CrisisToMedium, def.CrisisToMedium)
	check("mild_crisis_to_low", &s.MildCrisisToLow, def.MildCrisisToLow)
	check("negative_to_low", &s.NegativeToLow, def.NegativeToLow)
	check("unknown_to_low", &s.UnknownToLow, def.UnknownToLow)
	check("ensemble_high", &s.EnsembleHigh, def.EnsembleHigh)
	check("ensemble_medium", &s.EnsembleMedium, def.EnsembleMedium)
	check("ensemble_low", &s.EnsembleLow, def.EnsembleLow)
	check("gap_threshold", &s.GapThreshold, def.GapThreshold)

	if s.CrisisToHigh <= s.CrisisToMedium {
		report.Errors = append(report.Errors,
			fmt.Sprintf("%s: crisis_to_high %.4f must exceed crisis_to_medium %.4f", s.Mode, s.CrisisToHigh, s.CrisisToMedium))
		s.CrisisToHigh = def.CrisisToHigh
		s.CrisisToMedium = def.CrisisToMedium
	}
	if !(s.EnsembleHigh > s.EnsembleMedium && s.EnsembleMedium > s.EnsembleLow) {
		report.Errors = append(report.Errors,
			fmt.Sprintf("%s: ensemble thresholds must be strictly ordered high>medium>low (%.4f/%.4f/%.4f)",
				s.Mode, s.EnsembleHigh, s.EnsembleMedium, s.EnsembleLow))
		s.EnsembleHigh = def.EnsembleHigh
		s.EnsembleMedium = def.EnsembleMedium
		s.EnsembleLow = def.EnsembleLow
	}
	return s
}

// validatePolicy checks the shared policy knobs, substituting defaults
// for failing fields.
func validatePolicy(p Policy, report *ValidationReport, debug bool) Policy {
	def := DefaultPolicy()

	if p.MediumConfidenceThreshold < 0 || p.MediumConfidenceThreshold > 1 {
		report.Errors = append(report.Errors,
			fmt.Sprintf("policy.medium_confidence_threshold: %.4f out of [0,1]", p.MediumConfidenceThreshold))
		p.MediumConfidenceThreshold = def.MediumConfidenceThreshold
	}
	if p.LowConfidenceThreshold < 0 || p.LowConfidenceThreshold > 1 {
		report.Errors = append(report.Errors,
			fmt.Sprintf("policy.low_confidence_threshold: %.4f out of [0,1]", p.LowConfidenceThreshold))
		p.LowConfidenceThreshold = def.LowConfidenceThreshold
	}
	if p.LowConfidenceThreshold <= p.MediumConfidenceThreshold {
		report.Errors = append(report.Errors,
			fmt.Sprintf("policy: low_confidence_threshold %.4f must exceed medium_confidence_threshold %.4f",
				p.LowConfidenceThreshold, p.MediumConfidenceThreshold))
		p.MediumConfidenceThreshold = def.MediumConfidenceThreshold
		p.LowConfidenceThreshold = def.LowConfidenceThreshold
	}
	if p.FeedbackWeight < 0 || p.FeedbackWeight > 1 {
		report.Errors = append(report.Errors,
			fmt.Sprintf("policy.feedback_weight: %.4f out of [0,1]", p.FeedbackWeight))
		p.FeedbackWeight = def.FeedbackWeight
	}
	if p.SafetyBias < 0 || p.SafetyBias > 0.2 {
		report.Errors = append(report.Errors,
			fmt.Sprintf("policy.safety_bias: %.4f out of [0,0.2]", p.SafetyBias))
		p.SafetyBias = def.SafetyBias
	}
	if debug && len(report.Errors) > 0 {
		log.Printf("[thresholds] policy validated with %d error(s)", len(report.Errors))
	}
	return p
}

// crossModeWarnings flags modes whose high thresholds diverge by more
// than 0.3. Divergence is suspicious but never blocking.
func crossModeWarnings(sets map[string]Set, report *ValidationReport) {
	modes := make([]string, 0, len(sets))
	for m := range sets {
		modes = append(modes, m)
	}
	sort.Strings(modes)

	for i := 0; i < len(modes); i++ {
		for j := i + 1; j < len(modes); j++ {
			a, b := sets[modes[i]], sets[modes[j]]
			if math.Abs(a.CrisisToHigh-b.CrisisToHigh) > 0.3 {
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("modes %s and %s diverge on crisis_to_high by more than 0.3 (%.4f vs %.4f)",
						a.Mode, b.Mode, a.CrisisToHigh, b.CrisisToHigh))
			}
		}
	}
}
