package thresholds

import (
	"errors"
	"strings"
	"testing"
)

func mapLookup(m map[string]string) Overrides {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestNewServesDefaults(t *testing.T) {
	s := New()

	set := s.Set("consensus")
	if set.CrisisToHigh != 0.55 {
		t.Errorf("consensus crisis_to_high = %v, want 0.55", set.CrisisToHigh)
	}
	if got := s.Policy(); !got.HighAlways || got.LowConfidenceThreshold != 0.75 {
		t.Errorf("Policy() = %+v, want defaults", got)
	}
	if report := s.Validate(); !report.Valid {
		t.Errorf("Validate().Valid = false, want true: %v", report.Errors)
	}
}

func TestLoadPartialDocument(t *testing.T) {
	doc := []byte(`
modes:
  consensus:
    crisis_to_high: 0.62
policy:
  on_gap: false
`)
	s, err := Load(doc, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	set := s.Set("consensus")
	if set.CrisisToHigh != 0.62 {
		t.Errorf("crisis_to_high = %v, want 0.62", set.CrisisToHigh)
	}
	if set.CrisisToMedium != 0.30 {
		t.Errorf("crisis_to_medium = %v, want default 0.30", set.CrisisToMedium)
	}
	if p := s.Policy(); p.OnGap || !p.OnDisagreement {
		t.Errorf("Policy() = %+v, want on_gap false and on_disagreement default true", p)
	}
}

func TestLoadStrictAborts(t *testing.T) {
	doc := []byte(`
modes:
  consensus:
    crisis_to_high: 1.7
`)
	_, err := Load(doc, nil, WithStrict(true))
	if err == nil {
		t.Fatal("Load() error = nil, want validation error under strict mode")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Load() error = %T, want *ValidationError", err)
	}
	if len(verr.Errors) == 0 || !strings.Contains(verr.Errors[0], "crisis_to_high") {
		t.Errorf("ValidationError = %v, want a crisis_to_high entry", verr.Errors)
	}
}

func TestLoadLenientFallsBack(t *testing.T) {
	doc := []byte(`
modes:
  consensus:
    crisis_to_high: 1.7
    negative_to_low: 0.58
`)
	s, err := Load(doc, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	set := s.Set("consensus")
	if set.CrisisToHigh != 0.55 {
		t.Errorf("crisis_to_high = %v, want default 0.55 after fallback", set.CrisisToHigh)
	}
	if set.NegativeToLow != 0.58 {
		t.Errorf("negative_to_low = %v, want 0.58 kept despite sibling failure", set.NegativeToLow)
	}
	report := s.Validate()
	if report.Valid {
		t.Error("Validate().Valid = true, want false with recorded errors")
	}
}

func TestRelationalValidation(t *testing.T) {
	doc := []byte(`
modes:
  consensus:
    crisis_to_high: 0.30
    crisis_to_medium: 0.40
`)
	s, err := Load(doc, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	set := s.Set("consensus")
	if set.CrisisToHigh <= set.CrisisToMedium {
		t.Errorf("crisis_to_high %v <= crisis_to_medium %v after fallback", set.CrisisToHigh, set.CrisisToMedium)
	}
	if s.Validate().Valid {
		t.Error("Validate().Valid = true, want false for inverted crisis bands")
	}
}

func TestPolicyOrderingValidation(t *testing.T) {
	doc := []byte(`
policy:
  medium_confidence_threshold: 0.80
  low_confidence_threshold: 0.50
`)
	s, err := Load(doc, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	p := s.Policy()
	if p.LowConfidenceThreshold <= p.MediumConfidenceThreshold {
		t.Errorf("policy ordering not restored: medium %v, low %v", p.MediumConfidenceThreshold, p.LowConfidenceThreshold)
	}
}

func TestSafetyBiasRange(t *testing.T) {
	doc := []byte(`
policy:
  safety_bias: 0.35
`)
	s, err := Load(doc, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := s.Policy().SafetyBias; got != 0.1 {
		t.Errorf("SafetyBias = %v, want default 0.1 after out-of-range value", got)
	}
}

func TestUnknownModeFallsBackToDefaults(t *testing.T) {
	s := New()
	set := s.Set("experimental")
	if set.Mode != "experimental" {
		t.Errorf("Mode = %q, want experimental", set.Mode)
	}
	if set.CrisisToHigh != 0.55 {
		t.Errorf("crisis_to_high = %v, want consensus default 0.55", set.CrisisToHigh)
	}
}

func TestCrossModeWarning(t *testing.T) {
	doc := []byte(`
modes:
  consensus:
    crisis_to_high: 0.95
  weighted:
    crisis_to_high: 0.40
`)
	s, err := Load(doc, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	report := s.Validate()
	if !report.Valid {
		t.Errorf("Validate().Valid = false, warnings must not invalidate: %v", report.Errors)
	}
	found := false
	for _, w := range report.Warnings {
		if strings.Contains(w, "crisis_to_high") {
			found = true
		}
	}
	if !found {
		t.Errorf("Warnings = %v, want a crisis_to_high divergence warning", report.Warnings)
	}
}

func TestReloadKeepsOldSnapshotOnError(t *testing.T) {
	s, err := Load([]byte(`
modes:
  consensus:
    crisis_to_high: 0.62
`), nil, WithStrict(true))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := s.Reload([]byte(`
modes:
  consensus:
    crisis_to_high: 2.5
`), nil); err == nil {
		t.Fatal("Reload() error = nil, want strict validation error")
	}

	if got := s.Set("consensus").CrisisToHigh; got != 0.62 {
		t.Errorf("crisis_to_high after failed reload = %v, want previous 0.62", got)
	}
}

func TestOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"CONSENSUS_CRISIS_TO_HIGH": "0.66",
		"POLICY_ON_GAP":            "disabled",
		"POLICY_SAFETY_BIAS":       "0.15",
	})

	s, err := Load([]byte(`
modes:
  consensus:
    crisis_to_high: 0.58
`), lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := s.Set("consensus").CrisisToHigh; got != 0.66 {
		t.Errorf("crisis_to_high = %v, override must beat the document value", got)
	}
	p := s.Policy()
	if p.OnGap {
		t.Error("OnGap = true, want false from override")
	}
	if p.SafetyBias != 0.15 {
		t.Errorf("SafetyBias = %v, want 0.15", p.SafetyBias)
	}
}

func TestOverrideInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		lookup map[string]string
		key    string
	}{
		{name: "bad float", lookup: map[string]string{"CONSENSUS_CRISIS_TO_HIGH": "lots"}, key: "CONSENSUS_CRISIS_TO_HIGH"},
		{name: "bad bool", lookup: map[string]string{"POLICY_ON_GAP": "maybe"}, key: "POLICY_ON_GAP"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Lenient load stays usable: the field keeps its default and
			// the parse failure lands in the report.
			s, err := Load(nil, mapLookup(tt.lookup))
			if err != nil {
				t.Fatalf("Load() error = %v, lenient load must not abort", err)
			}
			report := s.Validate()
			if report.Valid {
				t.Error("Validate().Valid = true, want false with a recorded override error")
			}
			found := false
			for _, e := range report.Errors {
				if strings.Contains(e, tt.key) {
					found = true
				}
			}
			if !found {
				t.Errorf("Errors = %v, want an entry naming %s", report.Errors, tt.key)
			}

			if _, err := Load(nil, mapLookup(tt.lookup), WithStrict(true)); err == nil {
				t.Error("Load() error = nil under strict mode, want override parse error")
			}
		})
	}
}

func TestOverrideInvalidValueKeepsDefault(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"CONSENSUS_CRISIS_TO_HIGH": "lots",
		"POLICY_ON_GAP":            "maybe",
	})

	s, err := Load(nil, lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := s.Set("consensus").CrisisToHigh; got != 0.55 {
		t.Errorf("crisis_to_high = %v, want default 0.55 when the override cannot parse", got)
	}
	if !s.Policy().OnGap {
		t.Error("OnGap = false, want default true when the override cannot parse")
	}
}

func TestParseBool(t *testing.T) {
	trues := []string{"true", "1", "yes", "on", "enabled", " TRUE ", "Enabled"}
	falses := []string{"false", "0", "no", "off", "disabled", "OFF"}
	bad := []string{"", "maybe", "2", "t", "y"}

	for _, raw := range trues {
		got, err := ParseBool(raw)
		if err != nil || !got {
			t.Errorf("ParseBool(%q) = %v, %v; want true, nil", raw, got, err)
		}
	}
	for _, raw := range falses {
		got, err := ParseBool(raw)
		if err != nil || got {
			t.Errorf("ParseBool(%q) = %v, %v; want false, nil", raw, got, err)
		}
	}
	for _, raw := range bad {
		if _, err := ParseBool(raw); err == nil {
			t.Errorf("ParseBool(%q) error = nil, want error", raw)
		}
	}
}

func TestActiveModes(t *testing.T) {
	doc := []byte(`
modes:
  custom:
    crisis_to_high: 0.70
    crisis_to_medium: 0.35
`)
	s, err := Load(doc, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	modes := s.ActiveModes()
	want := []string{"consensus", "custom", "majority", "weighted"}
	if len(modes) != len(want) {
		t.Fatalf("ActiveModes() = %v, want %v", modes, want)
	}
	for i := range want {
		if modes[i] != want[i] {
			t.Errorf("ActiveModes()[%d] = %q, want %q", i, modes[i], want[i])
		}
	}
}
