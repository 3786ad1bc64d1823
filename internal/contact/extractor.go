// Package contact pulls emails, phone numbers and person-name candidates out of
// free text. It is a heuristic: results are order-independent, may contain false
// positives, and are meant to be overridden by structured listing fields.
package contact

import (
	"regexp"
	"strings"

	"github.com/valpere/LeadScrapexter/pkg/types"
)

var (
	emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

	// strict NANP: optional +1, area code and exchange starting 2-9
	strictPhoneRegex = regexp.MustCompile(`(?:\+?1[\s.\-]?)?\(?[2-9]\d{2}\)?[\s.\-]?[2-9]\d{2}[\s.\-]?\d{4}\b`)

	// loose: any three groups of 3-3-4 digits joined by separators
	loosePhoneRegex = regexp.MustCompile(`\b\d{3}[\s.\-/]+\d{3}[\s.\-/]+\d{4}\b`)

	nameRegex = regexp.MustCompile(`\b([A-Z][a-z]+)\s+([A-Z][a-z]+)\b`)

	nonDigitRegex = regexp.MustCompile(`\D`)
)

// asset-like suffixes that the email pattern picks up from markup
var falseEmailSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".css", ".js"}

// Candidate is a partial contact found in text
type Candidate struct {
	Email     string
	Phone     string
	FullName  string
	FirstName string
	LastName  string
	Source    types.Source
}

// ExtractEmails returns the distinct, lower-cased emails in text in first-seen order
func ExtractEmails(text string) []string {
	seen := make(map[string]bool)
	var emails []string
	for _, match := range emailRegex.FindAllString(text, -1) {
		email := strings.ToLower(strings.Trim(match, "."))
		if seen[email] || isFalseEmail(email) {
			continue
		}
		seen[email] = true
		emails = append(emails, email)
	}
	return emails
}

func isFalseEmail(email string) bool {
	for _, suffix := range falseEmailSuffixes {
		if strings.HasSuffix(email, suffix) {
			return true
		}
	}
	return false
}

// ExtractPhones returns the distinct 10-digit phone numbers in text.
// Both the strict and the loose pattern are applied; anything that does not
// normalize to exactly 10 digits is dropped.
func ExtractPhones(text string) []string {
	seen := make(map[string]bool)
	var phones []string
	for _, re := range []*regexp.Regexp{strictPhoneRegex, loosePhoneRegex} {
		for _, match := range re.FindAllString(text, -1) {
			phone, ok := NormalizePhone(match)
			if !ok || seen[phone] {
				continue
			}
			seen[phone] = true
			phones = append(phones, phone)
		}
	}
	return phones
}

// NormalizePhone strips everything but digits and a leading country code 1.
// ok is false unless exactly 10 digits remain.
func NormalizePhone(raw string) (string, bool) {
	digits := nonDigitRegex.ReplaceAllString(raw, "")
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return "", false
	}
	return digits, true
}

// ExtractNames returns distinct capitalized two-word candidates
func ExtractNames(text string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, match := range nameRegex.FindAllString(text, -1) {
		name := strings.Join(strings.Fields(match), " ")
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// Extract runs every pass over text. One candidate is produced per email;
// without emails a single candidate carries the best phone and name.
func Extract(text string, source types.Source) []Candidate {
	emails := ExtractEmails(text)
	phones := ExtractPhones(text)
	names := ExtractNames(text)

	phone := first(phones)
	name := first(names)

	if len(emails) > 0 {
		candidates := make([]Candidate, 0, len(emails))
		for _, email := range emails {
			candidates = append(candidates, newCandidate(email, phone, name, source))
		}
		return candidates
	}

	if phone != "" || name != "" {
		return []Candidate{newCandidate("", phone, name, source)}
	}

	return nil
}

func newCandidate(email, phone, name string, source types.Source) Candidate {
	c := Candidate{Email: email, Phone: phone, FullName: name, Source: source}
	if parts := strings.Fields(name); len(parts) == 2 {
		c.FirstName, c.LastName = parts[0], parts[1]
	}
	return c
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
