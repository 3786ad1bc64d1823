// internal/browser/text.go
package browser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DocumentText parses html and returns its readable text, one text node per line
func DocumentText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	return SelectionText(doc.Find("body")), nil
}

// SelectionText returns the text of sel with text nodes separated by newlines.
// Script and style contents are skipped.
func SelectionText(sel *goquery.Selection) string {
	var parts []string
	collectText(sel, &parts)
	return strings.Join(parts, "\n")
}

func collectText(sel *goquery.Selection, parts *[]string) {
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "#text":
			if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
				*parts = append(*parts, text)
			}
		case "script", "style", "noscript", "#comment":
		default:
			collectText(s, parts)
		}
	})
}
