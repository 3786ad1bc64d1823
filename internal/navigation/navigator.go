// Package navigation loads result pages and clears anti-bot interstitials
// with an ordered ladder of wait, reload and re-navigate steps.
package navigation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/valpere/LeadScrapexter/internal/browser"
	"github.com/valpere/LeadScrapexter/internal/errors"
	"github.com/valpere/LeadScrapexter/internal/monitoring"
	"github.com/valpere/LeadScrapexter/internal/utils"
)

// State is a navigation lifecycle state
type State int

const (
	Idle State = iota
	Navigating
	Loaded
	ProtectionDetected
	Bypassing
	Bypassed
	BypassFailed
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Navigating:
		return "navigating"
	case Loaded:
		return "loaded"
	case ProtectionDetected:
		return "protection_detected"
	case Bypassing:
		return "bypassing"
	case Bypassed:
		return "bypassed"
	case BypassFailed:
		return "bypass_failed"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no transition leaves s
func (s State) Terminal() bool {
	return s == Ready || s == Failed
}

// Step is one rung of the bypass ladder
type Step int

const (
	StepPassiveWait Step = iota + 1
	StepReload
	StepLongWait
	StepRenavigate
)

// Ladder is the fixed order in which bypass steps run
var Ladder = []Step{StepPassiveWait, StepReload, StepLongWait, StepRenavigate}

func (s Step) String() string {
	switch s {
	case StepPassiveWait:
		return "passive_wait"
	case StepReload:
		return "reload"
	case StepLongWait:
		return "long_wait"
	case StepRenavigate:
		return "renavigate"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// DefaultMarkers are title substrings that identify an interstitial page
var DefaultMarkers = []string{
	"Attention Required",
	"Just a moment",
	"Access denied",
	"Please Wait",
	"Checking your browser",
}

// Config holds the navigation timeout and the budget of every ladder step.
// Each budget is used only by its own step.
type Config struct {
	NavigationTimeout time.Duration `yaml:"timeout" json:"timeout"`
	PassiveWait       time.Duration `yaml:"passive_wait" json:"passive_wait"`
	ReloadTimeout     time.Duration `yaml:"reload_timeout" json:"reload_timeout"`
	ReloadWait        time.Duration `yaml:"reload_wait" json:"reload_wait"`
	LongWait          time.Duration `yaml:"long_wait" json:"long_wait"`
	RenavigateTimeout time.Duration `yaml:"renavigate_timeout" json:"renavigate_timeout"`
	RenavigateWait    time.Duration `yaml:"renavigate_wait" json:"renavigate_wait"`
	Markers           []string      `yaml:"markers,omitempty" json:"markers,omitempty"`
}

// DefaultConfig returns the default ladder budgets
func DefaultConfig() Config {
	return Config{
		NavigationTimeout: 60 * time.Second,
		PassiveWait:       5 * time.Second,
		ReloadTimeout:     30 * time.Second,
		ReloadWait:        5 * time.Second,
		LongWait:          15 * time.Second,
		RenavigateTimeout: 90 * time.Second,
		RenavigateWait:    10 * time.Second,
		Markers:           append([]string(nil), DefaultMarkers...),
	}
}

// Sleeper waits for d or until ctx ends
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleep is the default Sleeper
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// LoadResult describes one Load call
type LoadResult struct {
	URL      string        `json:"url"`
	State    State         `json:"state"`
	Title    string        `json:"title"`
	History  []State       `json:"history"`
	Steps    []Step        `json:"steps"`
	Duration time.Duration `json:"duration"`
}

// Navigator drives a page to Ready or Failed. It never retries a failed
// navigation; callers decide whether to try again.
type Navigator struct {
	config   Config
	logger   utils.Logger
	metrics  *monitoring.MetricsManager
	sleep    Sleeper
	source   string
	debugDir string
}

// Option configures a Navigator
type Option func(*Navigator)

// WithSleeper replaces the wait implementation
func WithSleeper(s Sleeper) Option {
	return func(n *Navigator) { n.sleep = s }
}

// WithMetrics records detections and ladder outcomes
func WithMetrics(m *monitoring.MetricsManager) Option {
	return func(n *Navigator) { n.metrics = m }
}

// WithSource labels logs and metrics with the directory source
func WithSource(source string) Option {
	return func(n *Navigator) { n.source = source }
}

// WithDebugDir saves a screenshot there whenever the ladder is exhausted
func WithDebugDir(dir string) Option {
	return func(n *Navigator) { n.debugDir = dir }
}

// NewNavigator creates a navigator
func NewNavigator(config Config, logger utils.Logger, opts ...Option) *Navigator {
	if len(config.Markers) == 0 {
		config.Markers = append([]string(nil), DefaultMarkers...)
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	n := &Navigator{
		config: config,
		logger: logger,
		sleep:  ContextSleep,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// IsProtectionTitle reports whether title contains any marker, ignoring case
func IsProtectionTitle(title string, markers []string) bool {
	lower := strings.ToLower(title)
	for _, marker := range markers {
		if marker != "" && strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

type run struct {
	result *LoadResult
	start  time.Time
}

func (r *run) to(state State) {
	r.result.State = state
	r.result.History = append(r.result.History, state)
}

// Load navigates page to url and clears any interstitial.
// A nil error means the result is Ready.
func (n *Navigator) Load(ctx context.Context, page browser.Page, url string) (*LoadResult, error) {
	r := &run{
		result: &LoadResult{URL: url, State: Idle, History: []State{Idle}},
		start:  time.Now(),
	}
	log := n.logger.WithFields(map[string]interface{}{"url": url, "source": n.source})

	defer func() {
		r.result.Duration = time.Since(r.start)
		n.metrics.RecordNavigation(r.result.State.String(), r.result.Duration)
		n.metrics.RecordPageLoaded(n.source, r.result.State.String())
	}()

	r.to(Navigating)
	if err := page.Navigate(ctx, url, n.config.NavigationTimeout); err != nil {
		r.to(Failed)
		if ctx.Err() != nil {
			return r.result, ctx.Err()
		}
		log.Warnf("navigation failed: %v", err)
		return r.result, errors.Navigation(url, err)
	}
	r.to(Loaded)

	title, err := page.Title(ctx)
	if err != nil {
		r.to(Failed)
		return r.result, errors.Navigation(url, err)
	}
	r.result.Title = title

	if !IsProtectionTitle(title, n.config.Markers) {
		r.to(Ready)
		return r.result, nil
	}

	r.to(ProtectionDetected)
	n.metrics.RecordProtectionDetected(n.source)
	log.Infof("protection page detected: %q", title)

	r.to(Bypassing)
	for _, step := range Ladder {
		r.result.Steps = append(r.result.Steps, step)

		if err := n.runStep(ctx, page, url, step); err != nil {
			if ctx.Err() != nil {
				r.to(Failed)
				return r.result, ctx.Err()
			}
			log.WithField("step", step.String()).Warnf("bypass step failed: %v", err)
		}

		title, err = page.Title(ctx)
		if err != nil {
			log.WithField("step", step.String()).Warnf("title check failed: %v", err)
			n.metrics.RecordBypassAttempt(step.String(), false)
			continue
		}
		r.result.Title = title

		cleared := !IsProtectionTitle(title, n.config.Markers)
		n.metrics.RecordBypassAttempt(step.String(), cleared)
		if cleared {
			r.to(Bypassed)
			r.to(Ready)
			n.metrics.RecordBypassOutcome(true)
			log.WithField("step", step.String()).Info("protection bypassed")
			return r.result, nil
		}
	}

	r.to(BypassFailed)
	n.metrics.RecordBypassOutcome(false)
	n.saveDebugScreenshot(ctx, page, log)
	r.to(Failed)

	return r.result, errors.ProtectionBypass(url,
		fmt.Errorf("still on %q after %d bypass steps", title, len(Ladder)))
}

func (n *Navigator) runStep(ctx context.Context, page browser.Page, url string, step Step) error {
	switch step {
	case StepPassiveWait:
		return n.sleep(ctx, n.config.PassiveWait)
	case StepReload:
		if err := page.Reload(ctx, n.config.ReloadTimeout); err != nil {
			return err
		}
		return n.sleep(ctx, n.config.ReloadWait)
	case StepLongWait:
		return n.sleep(ctx, n.config.LongWait)
	case StepRenavigate:
		if err := page.Navigate(ctx, url, n.config.RenavigateTimeout); err != nil {
			return err
		}
		return n.sleep(ctx, n.config.RenavigateWait)
	default:
		return fmt.Errorf("unknown bypass step %d", int(step))
	}
}

func (n *Navigator) saveDebugScreenshot(ctx context.Context, page browser.Page, log utils.Logger) {
	if n.debugDir == "" {
		return
	}
	shot, err := page.Screenshot(ctx)
	if err != nil {
		log.Warnf("debug screenshot failed: %v", err)
		return
	}
	if err := os.MkdirAll(n.debugDir, 0755); err != nil {
		log.Warnf("debug directory unavailable: %v", err)
		return
	}
	name := fmt.Sprintf("bypass_%s_%s.png", n.source, time.Now().Format("20060102_150405"))
	path := filepath.Join(n.debugDir, name)
	if err := os.WriteFile(path, shot, 0644); err != nil {
		log.Warnf("debug screenshot not saved: %v", err)
		return
	}
	log.WithField("file", path).Info("saved bypass failure screenshot")
}
