package browsertest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPage_NavigateAndReload(t *testing.T) {
	ctx := context.Background()
	b := NewBrowser()
	b.AddPage("https://example.com/a", `<html><head><title>Just a moment...</title></head><body></body></html>`)

	session, err := b.Launch(ctx, nil)
	require.NoError(t, err)
	page, err := session.NewPage(ctx)
	require.NoError(t, err)

	require.NoError(t, page.Navigate(ctx, "https://example.com/a", 0))
	title, _ := page.Title(ctx)
	assert.Equal(t, "Just a moment...", title)

	b.AddPage("https://example.com/a", `<html><head><title>Results</title></head><body></body></html>`)
	require.NoError(t, page.Reload(ctx, 0))
	title, _ = page.Title(ctx)
	assert.Equal(t, "Results", title)

	err = page.Navigate(ctx, "https://example.com/missing", 0)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, session.Close())
	assert.True(t, b.Closed())
}

func TestElement_ClickReveal(t *testing.T) {
	ctx := context.Background()
	page := NewPage(`<div class="listing">
		<button class="more" data-test-reveal="<a href='mailto:info@acme.com'>email</a>">More</button>
	</div>`)

	listings, err := page.QuerySelectorAll(ctx, ".listing")
	require.NoError(t, err)
	require.Len(t, listings, 1)

	_, err = listings[0].QuerySelector(ctx, "a[href^='mailto:']")
	require.Error(t, err)

	button, err := listings[0].QuerySelector(ctx, "button.more")
	require.NoError(t, err)
	require.NoError(t, button.Click(ctx))

	link, err := listings[0].QuerySelector(ctx, "a[href^='mailto:']")
	require.NoError(t, err)
	href, ok, _ := link.Attribute(ctx, "href")
	assert.True(t, ok)
	assert.Equal(t, "mailto:info@acme.com", href)
	assert.Equal(t, 1, page.Clicks())
}

func TestElement_AttributeValues(t *testing.T) {
	ctx := context.Background()
	page := NewPage(`<div class="listing" data-id="7"><span onclick="location='mailto:x@y.com'">x</span></div>`)

	listings, _ := page.QuerySelectorAll(ctx, ".listing")
	require.Len(t, listings, 1)

	values, err := listings[0].AttributeValues(ctx)
	require.NoError(t, err)
	assert.Contains(t, values, "listing")
	assert.Contains(t, values, "location='mailto:x@y.com'")
}
