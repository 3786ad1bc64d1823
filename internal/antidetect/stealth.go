// internal/antidetect/stealth.go
package antidetect

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
)

// StealthProfile is the navigator surface presented by one browser session
type StealthProfile struct {
	UserAgent string
	Languages []string
	Platform  string
	Plugins   int
}

// NewStealthProfile picks a consistent profile for a session. A non-empty
// userAgent is kept; otherwise one is taken from rotator.
func NewStealthProfile(rotator *UserAgentRotator, userAgent string) *StealthProfile {
	if userAgent == "" {
		if rotator == nil {
			rotator = NewUserAgentRotator(nil)
		}
		userAgent = rotator.GetRandom()
	}

	return &StealthProfile{
		UserAgent: userAgent,
		Languages: []string{"en-US", "en"},
		Platform:  platformFor(userAgent),
		Plugins:   3 + rand.Intn(3),
	}
}

func platformFor(userAgent string) string {
	switch {
	case strings.Contains(userAgent, "Macintosh"):
		return "MacIntel"
	case strings.Contains(userAgent, "Windows"):
		return "Win32"
	default:
		return "Linux x86_64"
	}
}

const stealthTemplate = `(() => {
	const define = (obj, prop, value) => {
		try { Object.defineProperty(obj, prop, { get: () => value, configurable: true }); } catch (e) {}
	};
	define(Navigator.prototype, 'webdriver', undefined);
	define(Navigator.prototype, 'languages', %s);
	define(Navigator.prototype, 'platform', %s);
	define(Navigator.prototype, 'plugins', Array.from({ length: %d }, (_, i) => ({ name: 'Plugin ' + i })));
	window.chrome = window.chrome || { runtime: {} };
	const permissions = window.navigator.permissions;
	if (permissions && permissions.query) {
		const query = permissions.query.bind(permissions);
		permissions.query = (p) => p && p.name === 'notifications'
			? Promise.resolve({ state: Notification.permission })
			: query(p);
	}
})();`

// Script renders the init script that applies the profile to a page
func (p *StealthProfile) Script() string {
	languages, _ := json.Marshal(p.Languages)
	platform, _ := json.Marshal(p.Platform)
	return fmt.Sprintf(stealthTemplate, languages, platform, p.Plugins)
}
