// Package follow maps audio playback time to printed score pages and
// drives the embedded PDF viewer. The synchronizer is a two-state
// machine (detached, or attached to one work's transport); the pane
// consumer buffers goto signals that arrive before the viewer is ready.
package follow

import (
	"sync"

	"Praetorius/model"
)

// Signal is one page-goto emission: the printed page that changed and
// the PDF document page it maps to.
type Signal struct {
	Slug        string `json:"slug"`
	PrintedPage int    `json:"printedPage"`
	PDFPage     int    `json:"pdfPage"`
}

// Synchronizer follows one attached work's playback time and emits a
// Signal whenever the printed page changes.
type Synchronizer struct {
	mu      sync.Mutex
	configs map[string]model.PageFollow
	slug    string
	cfg     model.PageFollow
	// lastPrinted is nil until the first evaluation after attach.
	lastPrinted *int
	emit        func(Signal)
}

// NewSynchronizer builds a detached synchronizer over the per-slug
// config map. emit receives every page-goto signal.
func NewSynchronizer(configs map[string]model.PageFollow, emit func(Signal)) *Synchronizer {
	if configs == nil {
		configs = map[string]model.PageFollow{}
	}
	if emit == nil {
		emit = func(Signal) {}
	}
	return &Synchronizer{configs: configs, emit: emit}
}

// Attach binds to a work's transport when a page-follow config exists
// for its slug, detaching any prior binding first, and evaluates the
// given current time immediately. Reports whether a binding was made.
func (s *Synchronizer) Attach(slug string, currentTime float64) bool {
	s.mu.Lock()
	cfg, ok := s.configs[slug]
	if !ok || slug == "" {
		s.detachLocked()
		s.mu.Unlock()
		return false
	}
	s.slug = slug
	s.cfg = cfg
	s.lastPrinted = nil
	s.mu.Unlock()
	s.OnTime(slug, currentTime)
	return true
}

// SetConfigs swaps the per-slug config map, detaching when the bound
// slug no longer has a config.
func (s *Synchronizer) SetConfigs(configs map[string]model.PageFollow) {
	if configs == nil {
		configs = map[string]model.PageFollow{}
	}
	s.mu.Lock()
	s.configs = configs
	if s.slug != "" {
		if cfg, ok := configs[s.slug]; ok {
			s.cfg = cfg
		} else {
			s.detachLocked()
		}
	}
	s.mu.Unlock()
}

// Detach clears the binding. Idempotent.
func (s *Synchronizer) Detach() {
	s.mu.Lock()
	s.detachLocked()
	s.mu.Unlock()
}

func (s *Synchronizer) detachLocked() {
	s.slug = ""
	s.cfg = model.PageFollow{}
	s.lastPrinted = nil
}

// Attached reports the currently bound slug, empty when detached.
func (s *Synchronizer) Attached() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slug
}

// OnTime feeds one time event from the bound transport. Events for any
// other slug, or while detached, are ignored. A signal is emitted only
// when the printed page differs from the last one seen.
func (s *Synchronizer) OnTime(slug string, currentTime float64) {
	s.mu.Lock()
	if s.slug == "" || slug != s.slug {
		s.mu.Unlock()
		return
	}
	printed := PrintedPageForTime(s.cfg, currentTime)
	if s.lastPrinted != nil && *s.lastPrinted == printed {
		s.mu.Unlock()
		return
	}
	s.lastPrinted = &printed
	sig := Signal{
		Slug:        s.slug,
		PrintedPage: printed,
		PDFPage:     PDFPageFor(s.cfg, printed),
	}
	emit := s.emit
	s.mu.Unlock()
	emit(sig)
}

// PrintedPageForTime is the floor lookup over the page map: the page of
// the greatest entry whose timestamp is at or before the offset-adjusted
// time, defaulting to the first entry's page (or 1 on an empty map)
// before the first breakpoint.
func PrintedPageForTime(cfg model.PageFollow, tSec float64) int {
	time := tSec + cfg.MediaOffsetSec
	current := 1
	if len(cfg.PageMap) > 0 {
		current = cfg.PageMap[0].Page
	}
	for _, row := range cfg.PageMap {
		if time >= row.At {
			current = row.Page
		} else {
			break
		}
	}
	return current
}

// PDFPageFor converts a printed page to the viewer document's page via
// the config's start page and delta correction.
func PDFPageFor(cfg model.PageFollow, printed int) int {
	start := cfg.PDFStartPage
	if start == 0 {
		start = 1
	}
	return start + (printed - 1) + cfg.PDFDelta
}
