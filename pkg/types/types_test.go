// pkg/types/types_test.go
package types

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestSource(t *testing.T) {
	tests := []struct {
		name    string
		source  Source
		isValid bool
	}{
		{"yellowpages", SourceYellowPages, true},
		{"manta", SourceManta, true},
		{"invalid source", Source("yelp"), false},
		{"empty source", Source(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.source.IsValid(); got != tt.isValid {
				t.Errorf("Source.IsValid() = %v, want %v", got, tt.isValid)
			}
		})
	}

	if len(ValidSources()) != 2 {
		t.Errorf("ValidSources() returned %d sources, expected 2", len(ValidSources()))
	}
}

func TestParseSource(t *testing.T) {
	tests := []struct {
		input   string
		want    Source
		wantErr bool
	}{
		{"yellowpages", SourceYellowPages, false},
		{"Yellow Pages", SourceYellowPages, false},
		{"yellow-pages", SourceYellowPages, false},
		{"YP", SourceYellowPages, false},
		{" Manta ", SourceManta, false},
		{"yelp", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSource(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSource(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSource(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSource_CanonicalName(t *testing.T) {
	tests := map[Source]string{
		SourceYellowPages:    "YellowPages",
		SourceManta:          "Manta",
		Source("superpages"): "Superpages",
		Source("  "):         "Unknown",
	}

	for source, want := range tests {
		if got := source.CanonicalName(); got != want {
			t.Errorf("Source(%q).CanonicalName() = %q, want %q", string(source), got, want)
		}
	}
}

func TestBusinessIdentity(t *testing.T) {
	a := NewBusinessIdentity("Acme  Plumbing", "(512) 555-0100", "1 Main St")
	b := NewBusinessIdentity(" acme plumbing", "(512) 555-0100", "1 MAIN ST ")
	if a != b {
		t.Errorf("Expected case and whitespace insensitive identity, got %q and %q", a, b)
	}
	if a != "acme plumbing|(512) 555-0100|1 main st" {
		t.Errorf("Unexpected identity %q", a)
	}

	empty := NewBusinessIdentity("", " ", "")
	if empty != "unknown|no-phone|no-address" {
		t.Errorf("Expected sentinels for missing parts, got %q", empty)
	}

	other := NewBusinessIdentity("Acme Plumbing", "(512) 555-0199", "1 Main St")
	if a == other {
		t.Error("Different phone numbers must yield different identities")
	}
}

func TestContactRecord_HasIdentity(t *testing.T) {
	tests := []struct {
		name   string
		record ContactRecord
		want   bool
	}{
		{"name only", ContactRecord{BusinessName: "Acme"}, true},
		{"phone only", ContactRecord{Phone: "5125550100"}, true},
		{"email only", ContactRecord{Email: "info@acme.com"}, false},
		{"blank name", ContactRecord{BusinessName: "   ", Address: "1 Main St"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.record.HasIdentity(); got != tt.want {
				t.Errorf("HasIdentity() = %v, want %v", got, tt.want)
			}
		})
	}

	r := ContactRecord{BusinessName: "Acme", Phone: "5125550100", Address: "1 Main St"}
	if r.Identity() != NewBusinessIdentity("Acme", "5125550100", "1 Main St") {
		t.Error("Identity() must match NewBusinessIdentity")
	}
}

func TestFormatPhone(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"5125550100", "(512) 555-0100"},
		{"512.555.0100", "(512) 555-0100"},
		{"+1 512 555 0100", "(512) 555-0100"},
		{"(512) 555-0100", "(512) 555-0100"},
		{"555-0100", "555-0100"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := FormatPhone(tt.input); got != tt.want {
				t.Errorf("FormatPhone(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestContactRecord_JSONFieldNames(t *testing.T) {
	r := ContactRecord{
		Serial:       1,
		BusinessName: "Acme",
		Source:       SourceManta,
		ScrapedAt:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Failed to marshal ContactRecord: %v", err)
	}

	for _, field := range []string{`"sno":1`, `"businessName":"Acme"`, `"source":"manta"`, `"scrapedAt":"2024-03-01T12:00:00Z"`} {
		if !strings.Contains(string(data), field) {
			t.Errorf("Expected %s in %s", field, data)
		}
	}
}
