package thresholds

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the raw mode-keyed threshold document as loaded from YAML.
// Pointer fields distinguish "absent" from an explicit zero, so the merge
// can fall back to defaults per field.
type Document struct {
	Modes  map[string]RawSet `yaml:"modes"`
	Policy RawPolicy         `yaml:"policy"`
}

// RawSet mirrors Set with optional fields.
type RawSet struct {
	CrisisToHigh    *float64 `yaml:"crisis_to_high"`
	CrisisToMedium  *float64 `yaml:"crisis_to_medium"`
	MildCrisisToLow *float64 `yaml:"mild_crisis_to_low"`
	NegativeToLow   *float64 `yaml:"negative_to_low"`
	UnknownToLow    *float64 `yaml:"unknown_to_low"`
	EnsembleHigh    *float64 `yaml:"ensemble_high"`
	EnsembleMedium  *float64 `yaml:"ensemble_medium"`
	EnsembleLow     *float64 `yaml:"ensemble_low"`
	GapThreshold    *float64 `yaml:"gap_threshold"`
}

// RawPolicy mirrors Policy with optional fields.
type RawPolicy struct {
	HighAlways                *bool    `yaml:"high_always"`
	MediumConfidenceThreshold *float64 `yaml:"medium_confidence_threshold"`
	LowConfidenceThreshold    *float64 `yaml:"low_confidence_threshold"`
	OnDisagreement            *bool    `yaml:"on_disagreement"`
	OnGap                     *bool    `yaml:"on_gap"`
	FeedbackWeight            *float64 `yaml:"feedback_weight"`
	SafetyBias                *float64 `yaml:"safety_bias"`
}

// ParseDocument unmarshals a YAML threshold document.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse thresholds document: %w", err)
	}
	if doc.Modes == nil {
		doc.Modes = make(map[string]RawSet)
	}
	return &doc, nil
}

// Overrides looks up an external key/value source, keyed <MODE>_<FIELD>
// in upper case. It returns the raw value and whether the key was set.
type Overrides func(key string) (string, bool)

// setFields maps document field names to Set field setters.
var setFields = map[string]func(*RawSet, float64){
	"crisis_to_high":     func(r *RawSet, v float64) { r.CrisisToHigh = &v },
	"crisis_to_medium":   func(r *RawSet, v float64) { r.CrisisToMedium = &v },
	"mild_crisis_to_low": func(r *RawSet, v float64) { r.MildCrisisToLow = &v },
	"negative_to_low":    func(r *RawSet, v float64) { r.NegativeToLow = &v },
	"unknown_to_low":     func(r *RawSet, v float64) { r.UnknownToLow = &v },
	"ensemble_high":      func(r *RawSet, v float64) { r.EnsembleHigh = &v },
	"ensemble_medium":    func(r *RawSet, v float64) { r.EnsembleMedium = &v },
	"ensemble_low":       func(r *RawSet, v float64) { r.EnsembleLow = &v },
	"gap_threshold":      func(r *RawSet, v float64) { r.GapThreshold = &v },
}

// ApplyOverrides folds external key/value overrides into the document.
// Float fields take any parseable number; boolean fields only accept the
// fixed vocabulary recognized by ParseBool. Anything else is an error.
func (d *Document) ApplyOverrides(lookup Overrides) error {
	if lookup == nil {
		return nil
	}

	var errs []string
	for _, mode := range knownAndDocumentModes(d) {
		raw := d.Modes[mode]
		prefix := strings.ToUpper(mode) + "_"
		changed := false
		for field, set := range setFields {
			val, ok := lookup(prefix + strings.ToUpper(field))
			if !ok {
				continue
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
			if err != nil {
				errs = append(errs, fmt.Sprintf("override %s%s: invalid float %q", prefix, strings.ToUpper(field), val))
				continue
			}
			set(&raw, f)
			changed = true
		}
		if changed {
			d.Modes[mode] = raw
		}
	}

	if err := d.Policy.applyOverrides(lookup, &errs); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func (p *RawPolicy) applyOverrides(lookup Overrides, errs *[]string) error {
	floatKeys := map[string]func(float64){
		"POLICY_MEDIUM_CONFIDENCE_THRESHOLD": func(v float64) { p.MediumConfidenceThreshold = &v },
		"POLICY_LOW_CONFIDENCE_THRESHOLD":    func(v float64) { p.LowConfidenceThreshold = &v },
		"POLICY_FEEDBACK_WEIGHT":             func(v float64) { p.FeedbackWeight = &v },
		"POLICY_SAFETY_BIAS":                 func(v float64) { p.SafetyBias = &v },
	}
	boolKeys := map[string]func(bool){
		"POLICY_HIGH_ALWAYS":     func(v bool) { p.HighAlways = &v },
		"POLICY_ON_DISAGREEMENT": func(v bool) { p.OnDisagreement = &v },
		"POLICY_ON_GAP":          func(v bool) { p.OnGap = &v },
	}

	for key, set := range floatKeys {
		val, ok := lookup(key)
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			*errs = append(*errs, fmt.Sprintf("override %s: invalid float %q", key, val))
			continue
		}
		set(f)
	}
	for key, set := range boolKeys {
		val, ok := lookup(key)
		if !ok {
			continue
		}
		b, err := ParseBool(val)
		if err != nil {
			*errs = append(*errs, fmt.Sprintf("override %s: %v", key, err))
			continue
		}
		set(b)
	}
	return nil
}

// knownAndDocumentModes returns the union of built-in modes and the modes
// present in the document, so overrides can introduce a new mode section.
func knownAndDocumentModes(d *Document) []string {
	seen := make(map[string]bool)
	var modes []string
	for _, m := range Modes() {
		seen[m] = true
		modes = append(modes, m)
	}
	for m := range d.Modes {
		if !seen[m] {
			modes = append(modes, m)
		}
	}
	return modes
}

// ParseBool recognizes only the fixed boolean vocabulary used by the
// external override source.
func ParseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "on", "enabled":
		return true, nil
	case "false", "0", "no", "off", "disabled":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q (expected true/1/yes/on/enabled or false/0/no/off/disabled)", raw)
}

// merge resolves a raw set against the built-in defaults for a mode.
func merge(mode string, raw RawSet) Set {
	s := DefaultSet(mode)
	s.Mode = mode
	if raw.CrisisToHigh != nil {
		s.CrisisToHigh = *raw.CrisisToHigh
	}
	if raw.CrisisToMedium != nil {
		s.CrisisToMedium = *raw.CrisisToMedium
	}
	if raw.MildCrisisToLow != nil {
		s.MildCrisisToLow = *raw.MildCrisisToLow
	}
	if raw.NegativeToLow != nil {
		s.NegativeToLow = *raw.NegativeToLow
	}
	if raw.UnknownToLow != nil {
		s.UnknownToLow = *raw.UnknownToLow
	}
	if raw.EnsembleHigh != nil {
		s.EnsembleHigh = *raw.EnsembleHigh
	}
	if raw.EnsembleMedium != nil {
		s.EnsembleMedium = *raw.EnsembleMedium
	}
	if raw.EnsembleLow != nil {
		s.EnsembleLow = *raw.EnsembleLow
	}
	if raw.GapThreshold != nil {
		s.GapThreshold = *raw.GapThreshold
	}
	return s
}

// mergePolicy resolves a raw policy against the built-in defaults.
func mergePolicy(raw RawPolicy) Policy {
	p := DefaultPolicy()
	if raw.HighAlways != nil {
		p.HighAlways = *raw.HighAlways
	}
	if raw.MediumConfidenceThreshold != nil {
		p.MediumConfidenceThreshold = *raw.MediumConfidenceThreshold
	}
	if raw.LowConfidenceThreshold != nil {
		p.LowConfidenceThreshold = *raw.LowConfidenceThreshold
	}
	if raw.OnDisagreement != nil {
		p.OnDisagreement = *raw.OnDisagreement
	}
	if raw.OnGap != nil {
		p.OnGap = *raw.OnGap
	}
	if raw.FeedbackWeight != nil {
		p.FeedbackWeight = *raw.FeedbackWeight
	}
	if raw.SafetyBias != nil {
		p.SafetyBias = *raw.SafetyBias
	}
	return p
}
