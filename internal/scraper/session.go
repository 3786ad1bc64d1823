// internal/scraper/session.go
package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/valpere/LeadScrapexter/internal/browser"
	"github.com/valpere/LeadScrapexter/pkg/types"
)

// SessionStats are the running counters of a session
type SessionStats struct {
	ListingsFound     int `json:"listings_found"`
	ListingsProcessed int `json:"listings_processed"`
	ListingsFailed    int `json:"listings_failed"`
	Duplicates        int `json:"duplicates"`
	NewContacts       int `json:"new_contacts"`
}

// Session is one scrape invocation: it owns the browser, the set of seen
// business identities and the accumulated records. Safe for concurrent use.
type Session struct {
	ID        string
	Source    types.Source
	StartedAt time.Time

	browser browser.Session
	tabs    *browser.TabPool

	mu       sync.Mutex
	seen     map[types.BusinessIdentity]struct{}
	records  []types.ContactRecord
	exported int
	stats    SessionStats

	closeOnce sync.Once
	closeErr  error
}

// NewSession creates a session. bs may be nil when no secondary pages are needed.
func NewSession(source types.Source, bs browser.Session, maxTabs int) *Session {
	s := &Session{
		ID:        uuid.New().String(),
		Source:    source,
		StartedAt: time.Now(),
		browser:   bs,
		seen:      make(map[types.BusinessIdentity]struct{}),
	}
	if bs != nil {
		s.tabs = browser.NewTabPool(bs, maxTabs)
	}
	return s
}

// Claim marks identity as seen. It returns false if it was already claimed.
func (s *Session) Claim(identity types.BusinessIdentity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[identity]; ok {
		s.stats.Duplicates++
		return false
	}
	s.seen[identity] = struct{}{}
	return true
}

// Add appends records that carry an identity and returns how many were kept
func (s *Session) Add(records ...types.ContactRecord) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, r := range records {
		if !r.HasIdentity() {
			continue
		}
		s.records = append(s.records, r)
		added++
	}
	s.stats.NewContacts += added
	return added
}

// TakeNew returns the records added since the previous call
func (s *Session) TakeNew() []types.ContactRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	fresh := append([]types.ContactRecord(nil), s.records[s.exported:]...)
	s.exported = len(s.records)
	return fresh
}

// Records returns a copy of all records
func (s *Session) Records() []types.ContactRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.ContactRecord(nil), s.records...)
}

// Len returns the number of records
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Stats returns a copy of the counters
func (s *Session) Stats() SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Session) addStats(delta PageStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.ListingsFound += delta.ListingsFound
	s.stats.ListingsProcessed += delta.ListingsProcessed
	s.stats.ListingsFailed += delta.ListingsFailed
}

// OpenTab opens a short-lived secondary page. The caller must call release.
func (s *Session) OpenTab(ctx context.Context) (browser.Page, func(), error) {
	if s.tabs == nil {
		return nil, nil, fmt.Errorf("session %s has no browser", s.ID)
	}
	return s.tabs.Acquire(ctx)
}

// CanOpenTabs reports whether OpenTab can succeed
func (s *Session) CanOpenTabs() bool {
	return s.tabs != nil
}

// Close tears the browser down. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.tabs != nil {
			s.tabs.Close()
		}
		if s.browser != nil {
			s.closeErr = s.browser.Close()
		}
	})
	return s.closeErr
}
