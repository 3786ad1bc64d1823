// internal/errors/errors_test.go
package errors

import (
	"fmt"
	"testing"
)

func TestScrapeError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"with target", Navigation("https://www.manta.com", fmt.Errorf("net::ERR_TIMED_OUT")),
			"navigation failure: navigate https://www.manta.com: net::ERR_TIMED_OUT"},
		{"op only", Config("load config", fmt.Errorf("missing file")),
			"configuration error: load config: missing file"},
		{"no cause", New(KindMergeRead, "read", "a.csv", nil),
			"merge read error: read a.csv"},
		{"unknown kind", New(KindUnknown, "", "", fmt.Errorf("boom")),
			"unknown: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestScrapeError_IsAndUnwrap(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := fmt.Errorf("page 3: %w", Persistence("write contacts", "/out/a.csv", cause))

	if !Is(err, ErrPersistence) {
		t.Error("Expected wrapped error to match ErrPersistence")
	}
	if Is(err, ErrNavigation) {
		t.Error("Persistence error must not match ErrNavigation")
	}
	if !Is(err, cause) {
		t.Error("Expected cause to be reachable through Unwrap")
	}

	var se *ScrapeError
	if !As(err, &se) {
		t.Fatal("Expected As to find the ScrapeError")
	}
	if se.Target != "/out/a.csv" || se.Op != "write contacts" {
		t.Errorf("Unexpected fields: %+v", se)
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(nil) != KindUnknown {
		t.Error("Expected KindUnknown for nil")
	}
	if KindOf(fmt.Errorf("plain")) != KindUnknown {
		t.Error("Expected KindUnknown for a plain error")
	}
	if KindOf(fmt.Errorf("outer: %w", ProtectionBypass("u", nil))) != KindProtectionBypass {
		t.Error("Expected KindProtectionBypass through wrapping")
	}
}

func TestKind_String(t *testing.T) {
	kinds := map[Kind]string{
		KindNavigation:        "navigation",
		KindProtectionBypass:  "protection_bypass",
		KindListingExtraction: "listing_extraction",
		KindPersistence:       "persistence",
		KindMergeRead:         "merge_read",
		KindConfig:            "config",
		KindUnknown:           "unknown",
	}
	for kind, want := range kinds {
		if got := kind.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(kind), got, want)
		}
	}
}
