// pkg/types/types.go
package types

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Source identifies the directory site a record was scraped from
type Source string

const (
	SourceYellowPages Source = "yellowpages"
	SourceManta       Source = "manta"
)

// ValidSources returns all sources with a site adapter
func ValidSources() []Source {
	return []Source{SourceYellowPages, SourceManta}
}

// IsValid checks if the source is a known value
func (s Source) IsValid() bool {
	for _, valid := range ValidSources() {
		if s == valid {
			return true
		}
	}
	return false
}

// ParseSource converts user input such as "Yellow Pages" or "YP" into a Source
func ParseSource(value string) (Source, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.NewReplacer(" ", "", "-", "", "_", "").Replace(normalized)

	switch normalized {
	case "yellowpages", "yp":
		return SourceYellowPages, nil
	case "manta":
		return SourceManta, nil
	default:
		return "", fmt.Errorf("unknown source %q (valid: yellowpages, manta)", value)
	}
}

// CanonicalName returns the directory name used for this source on disk
func (s Source) CanonicalName() string {
	switch s {
	case SourceYellowPages:
		return "YellowPages"
	case SourceManta:
		return "Manta"
	}
	v := strings.TrimSpace(string(s))
	if v == "" {
		return "Unknown"
	}
	return cases.Title(language.English).String(v)
}

// ContactRecord is one business contact as it is written to disk
type ContactRecord struct {
	Serial       int       `json:"sno" bson:"sno"`
	BusinessName string    `json:"businessName" bson:"business_name"`
	Website      string    `json:"website" bson:"website"`
	Address      string    `json:"address" bson:"address"`
	Email        string    `json:"email" bson:"email"`
	Phone        string    `json:"phone" bson:"phone"`
	Source       Source    `json:"source" bson:"source"`
	ScrapedAt    time.Time `json:"scrapedAt" bson:"scraped_at"`
}

// HasIdentity reports whether the record carries a name or a phone.
// Records without either are never emitted.
func (r ContactRecord) HasIdentity() bool {
	return strings.TrimSpace(r.BusinessName) != "" || strings.TrimSpace(r.Phone) != ""
}

// Identity returns the deduplication key for the record
func (r ContactRecord) Identity() BusinessIdentity {
	return NewBusinessIdentity(r.BusinessName, r.Phone, r.Address)
}

// BusinessIdentity is the name|phone|address key used to deduplicate listings
type BusinessIdentity string

const (
	unknownName    = "unknown"
	unknownPhone   = "no-phone"
	unknownAddress = "no-address"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NewBusinessIdentity builds an identity key; missing parts are replaced by sentinels
func NewBusinessIdentity(name, phone, address string) BusinessIdentity {
	return BusinessIdentity(
		identityPart(name, unknownName) + "|" +
			identityPart(phone, unknownPhone) + "|" +
			identityPart(address, unknownAddress))
}

func identityPart(value, sentinel string) string {
	value = strings.ToLower(strings.TrimSpace(whitespaceRegex.ReplaceAllString(value, " ")))
	if value == "" {
		return sentinel
	}
	return value
}

var nonDigitRegex = regexp.MustCompile(`\D`)

// FormatPhone renders a 10-digit phone as "(NNN) NNN-NNNN".
// Values that are not 10 digits after stripping are returned unchanged.
func FormatPhone(phone string) string {
	digits := nonDigitRegex.ReplaceAllString(phone, "")
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return phone
	}
	return fmt.Sprintf("(%s) %s-%s", digits[:3], digits[3:6], digits[6:])
}
