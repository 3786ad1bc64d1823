// internal/browser/chromedp_test.go
package browser_test

import (
	"context"
	"net/url"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/LeadScrapexter/internal/browser"
)

// chromePath finds a local Chrome, skipping the test when there is none
func chromePath(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Chrome test in short mode")
	}
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	t.Skip("Chrome is not installed")
	return ""
}

func TestChromeElement_TextAttributesClick(t *testing.T) {
	config := browser.DefaultBrowserConfig()
	config.ExecPath = chromePath(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	session, err := browser.NewChromeSession(ctx, config)
	require.NoError(t, err)
	defer session.Close()

	page, err := session.NewPage(ctx)
	require.NoError(t, err)
	defer page.Close()

	html := `<html><body>
		<div class="result" data-email="info@acme.example">
			<span class="name">Acme Plumbing</span>
			<button id="more" onclick="document.title='expanded'">More</button>
		</div>
	</body></html>`
	require.NoError(t, page.Navigate(ctx, "data:text/html,"+url.PathEscape(html), 20*time.Second))

	results, err := page.QuerySelectorAll(ctx, ".result")
	require.NoError(t, err)
	require.Len(t, results, 1)

	name, err := results[0].QuerySelector(ctx, ".name")
	require.NoError(t, err)
	text, err := name.Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Acme Plumbing", text)

	values, err := results[0].AttributeValues(ctx)
	require.NoError(t, err)
	assert.Contains(t, values, "info@acme.example")

	more, err := results[0].QuerySelector(ctx, "#more")
	require.NoError(t, err)
	require.NoError(t, more.Click(ctx))

	title, err := page.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "expanded", title)
}
