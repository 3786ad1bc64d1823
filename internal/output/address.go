// internal/output/address.go
package output

import (
	"regexp"
	"strings"
)

type addressRule struct {
	pattern     *regexp.Regexp
	replacement string
	// keep reports submatches the rule must leave alone
	keep func(match []string) bool
}

func (r addressRule) apply(address string) string {
	if r.keep == nil {
		return r.pattern.ReplaceAllString(address, r.replacement)
	}
	return r.pattern.ReplaceAllStringFunc(address, func(m string) string {
		if r.keep(r.pattern.FindStringSubmatch(m)) {
			return m
		}
		return r.pattern.ReplaceAllString(m, r.replacement)
	})
}

const (
	streetSuffixes = `St|Ave|Blvd|Rd|Dr|Ln|Ct|Pl|Way|Hwy|Pkwy|Cir`
	// a word unit needs its number, so "Unit Ct" and "Rm Way" stay street names
	wordUnit   = `\b(?:Ste|Suite|Unit|Apt|Bldg|Rm|Room)\.?\s+#?(?:\d[A-Za-z0-9-]*|[A-Z])\b`
	hashUnit   = `#\s*[A-Za-z0-9-]+`
	unitTokens = wordUnit + `|` + hashUnit
	// "Anchorage, AK 99503" at the end of the address
	cityStateZip = `[A-Z][a-z]+(?:[ .'-]+[A-Z][a-z]+)*\s*,?\s*[A-Z]{2}\s+\d{5}(?:-\d{4})?\s*`
)

var ordinalRegex = regexp.MustCompile(`^(?i:st|nd|rd|th)\b`)

// addressRules run in order. Every rule leaves an already delimited
// address untouched, so NormalizeAddress is idempotent.
var addressRules = []addressRule{
	// "102Anchorage, AK 99503" -> "102, Anchorage, AK 99503", but not "3Rd St"
	{
		pattern:     regexp.MustCompile(`(\d)(` + cityStateZip + `)$`),
		replacement: "$1, $2",
		keep:        func(m []string) bool { return ordinalRegex.MatchString(m[2]) },
	},
	// "Main StAustin" -> "Main St, Austin"
	{pattern: regexp.MustCompile(`\b(` + streetSuffixes + `)([A-Z][a-z]{2,})`), replacement: "$1, $2"},
	// "Blvd Ste 102" -> "Blvd, Ste 102"; "Main St #5" stays together
	{pattern: regexp.MustCompile(`\b((?:` + streetSuffixes + `)\.?)\s+(` + wordUnit + `)`), replacement: "$1, $2"},
	// "Ste 102 Anchorage" -> "Ste 102, Anchorage"
	{pattern: regexp.MustCompile(`(` + unitTokens + `)\s+([A-Z][a-z]+)`), replacement: "$1, $2"},
	// "Anchorage AK 99503" -> "Anchorage, AK 99503"
	{pattern: regexp.MustCompile(`([A-Za-z.])\s*,?\s*([A-Z]{2})\s+(\d{5}(?:-\d{4})?)\s*$`), replacement: "$1, $2 $3"},
}

var (
	commaSpaceRegex = regexp.MustCompile(`\s*,[\s,]*`)
	multiSpaceRegex = regexp.MustCompile(`\s{2,}`)
)

// NormalizeAddress comma-separates street, suite, city and state/zip
// tokens that arrived concatenated, e.g.
// "3300 Arctic Blvd Ste 102Anchorage, AK 99503" becomes
// "3300 Arctic Blvd, Ste 102, Anchorage, AK 99503".
func NormalizeAddress(address string) string {
	address = strings.TrimSpace(address)
	if address == "" {
		return ""
	}
	for _, rule := range addressRules {
		address = rule.apply(address)
	}
	address = commaSpaceRegex.ReplaceAllString(address, ", ")
	address = multiSpaceRegex.ReplaceAllString(address, " ")
	return strings.Trim(address, " ,")
}
