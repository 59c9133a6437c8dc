package id_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/xraph/cascade/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"TierDefinitionID", id.NewTierDefinitionID, "tier_"},
		{"TokenRecordID", id.NewTokenRecordID, "tok_"},
		{"FeatureLimitID", id.NewFeatureLimitID, "flr_"},
		{"LimitRuleID", id.NewLimitRuleID, "rule_"},
		{"UpgradeEventID", id.NewUpgradeEventID, "upg_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestNew(t *testing.T) {
	i := id.New(id.PrefixTokenRecord)
	if i.IsNil() {
		t.Fatal("expected non-nil ID")
	}
	if i.Prefix() != id.PrefixTokenRecord {
		t.Errorf("expected prefix %q, got %q", id.PrefixTokenRecord, i.Prefix())
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"TierDefinitionID", id.NewTierDefinitionID, id.ParseTierDefinitionID},
		{"TokenRecordID", id.NewTokenRecordID, id.ParseTokenRecordID},
		{"FeatureLimitID", id.NewFeatureLimitID, id.ParseFeatureLimitID},
		{"LimitRuleID", id.NewLimitRuleID, id.ParseLimitRuleID},
		{"UpgradeEventID", id.NewUpgradeEventID, id.ParseUpgradeEventID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round trip mismatch: got %q, want %q", parsed.String(), original.String())
			}
		})
	}
}

func TestParseWithPrefixMismatch(t *testing.T) {
	tok := id.NewTokenRecordID()
	if _, err := id.ParseLimitRuleID(tok.String()); err == nil {
		t.Error("expected prefix mismatch error")
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"Empty", ""},
		{"Garbage", "not a typeid"},
		{"BadSuffix", "tok_!!!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := id.Parse(tt.input); err == nil {
				t.Errorf("expected error parsing %q", tt.input)
			}
		})
	}
}

func TestNilID(t *testing.T) {
	var nilID id.ID

	if !nilID.IsNil() {
		t.Error("zero value should be nil")
	}
	if nilID.String() != "" {
		t.Errorf("nil ID string should be empty, got %q", nilID.String())
	}
	if nilID.Prefix() != "" {
		t.Errorf("nil ID prefix should be empty, got %q", nilID.Prefix())
	}
}

func TestJSONRoundTrip(t *testing.T) {
	type wrapper struct {
		ID id.ID `json:"id"`
	}

	original := wrapper{ID: id.NewFeatureLimitID()}
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded wrapper
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.ID.String() != original.ID.String() {
		t.Errorf("json round trip mismatch: got %q, want %q", decoded.ID.String(), original.ID.String())
	}
}

func TestScanValue(t *testing.T) {
	original := id.NewTierDefinitionID()

	v, err := original.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}

	var scanned id.ID
	if err := scanned.Scan(v); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if scanned.String() != original.String() {
		t.Errorf("scan round trip mismatch: got %q, want %q", scanned.String(), original.String())
	}

	var nilScanned id.ID
	if err := nilScanned.Scan(nil); err != nil {
		t.Fatalf("scan nil: %v", err)
	}
	if !nilScanned.IsNil() {
		t.Error("scanning nil should produce the Nil ID")
	}
}
