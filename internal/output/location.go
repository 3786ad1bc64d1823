// internal/output/location.go
package output

import (
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// UnknownState is used when a location carries no recognisable state code
const UnknownState = "XX"

var stateCodeRegex = regexp.MustCompile(`^[A-Za-z]{2}$`)

// LocationKey is the city and state a scrape targeted. It decides the
// output directory and the file name token.
type LocationKey struct {
	City  string `json:"city" yaml:"city"`
	State string `json:"state" yaml:"state"`
}

// NewLocationKey normalizes city to title case and state to a two-letter code
func NewLocationKey(city, state string) LocationKey {
	city = strings.Join(strings.Fields(city), " ")
	if city != "" {
		city = cases.Title(language.English, cases.NoLower).String(city)
	}
	state = strings.TrimSpace(state)
	if stateCodeRegex.MatchString(state) {
		state = strings.ToUpper(state)
	} else {
		state = UnknownState
	}
	return LocationKey{City: city, State: state}
}

// ParseLocation parses user input such as "Austin, TX", "austin tx" or
// "New York, NY 10001". It reports false when no city can be found.
func ParseLocation(input string) (LocationKey, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return LocationKey{}, false
	}

	if i := strings.LastIndex(input, ","); i >= 0 {
		city := input[:i]
		state := ""
		if fields := strings.Fields(input[i+1:]); len(fields) > 0 {
			state = fields[0]
		}
		key := NewLocationKey(city, state)
		return key, key.City != ""
	}

	fields := strings.Fields(input)
	// drop a trailing zip
	if n := len(fields); n > 1 && isDigits(fields[n-1]) {
		fields = fields[:n-1]
	}
	if n := len(fields); n > 1 && stateCodeRegex.MatchString(fields[n-1]) {
		key := NewLocationKey(strings.Join(fields[:n-1], " "), fields[n-1])
		return key, key.City != ""
	}
	key := NewLocationKey(strings.Join(fields, " "), "")
	return key, key.City != ""
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// IsZero reports whether the key is empty
func (k LocationKey) IsZero() bool {
	return k.City == ""
}

// Dir returns the directory name, e.g. "Austin TX"
func (k LocationKey) Dir() string {
	return k.City + " " + k.State
}

// FileToken returns the file name token, e.g. "New_York_NY"
func (k LocationKey) FileToken() string {
	return strings.ReplaceAll(k.City, " ", "_") + "_" + k.State
}

func (k LocationKey) String() string {
	return k.City + ", " + k.State
}

// LocationFromFilename recovers the source token and location from an
// exported file name like "yellowpages_New_York_NY_contacts_Page2.csv".
// ok is false when the name carries no location.
func LocationFromFilename(name string) (source string, key LocationKey, ok bool) {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	parts := strings.Split(base, "_")
	if len(parts) > 0 {
		source = parts[0]
	}

	idx := -1
	for i, p := range parts {
		if strings.EqualFold(p, "contacts") {
			idx = i
			break
		}
	}
	// source, at least one city segment, state, "contacts"
	if idx < 3 {
		return source, LocationKey{}, false
	}
	state := parts[idx-1]
	if !stateCodeRegex.MatchString(state) {
		return source, LocationKey{}, false
	}
	key = NewLocationKey(strings.Join(parts[1:idx-1], " "), state)
	return source, key, !key.IsZero()
}
