package follow

import (
	"sync"

	"Praetorius/core/mediaurl"
	"Praetorius/logger"
)

// Pane is the consumer side of the page-goto protocol: it tracks the
// embedded viewer's frame URL and readiness, navigates by rewriting the
// URL's page parameter, and buffers a goto that arrives before the
// viewer is ready or while another work's document is showing. Only the
// latest unconsumed goto is kept.
type Pane struct {
	mu          sync.Mutex
	slug        string
	frameURL    string
	viewerReady bool
	pending     *Signal

	// onNavigate receives every frame URL assignment (open and page
	// changes) so the hosting session can apply it.
	onNavigate func(slug, frameURL string)
}

// NewPane builds a closed pane. onNavigate may be nil.
func NewPane(onNavigate func(slug, frameURL string)) *Pane {
	if onNavigate == nil {
		onNavigate = func(string, string) {}
	}
	return &Pane{onNavigate: onNavigate}
}

// Open points the pane at a work's score. The viewer is not ready until
// the matching Ready acknowledgment arrives.
func (p *Pane) Open(slug, pdfURL string) string {
	frame := mediaurl.ViewerURL(pdfURL)
	p.mu.Lock()
	p.slug = slug
	p.frameURL = frame
	p.viewerReady = false
	p.pending = nil
	onNavigate := p.onNavigate
	p.mu.Unlock()
	onNavigate(slug, frame)
	return frame
}

// Close clears the pane state. Idempotent.
func (p *Pane) Close() {
	p.mu.Lock()
	p.slug = ""
	p.frameURL = ""
	p.viewerReady = false
	p.pending = nil
	p.mu.Unlock()
}

// Slug reports which work's document the pane is showing.
func (p *Pane) Slug() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slug
}

// FrameURL reports the current viewer frame URL.
func (p *Pane) FrameURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frameURL
}

// Ready marks the viewer ready for the given slug and replays a pending
// goto that matches it. An acknowledgment for a different document is
// ignored.
func (p *Pane) Ready(slug string) {
	p.mu.Lock()
	if p.slug == "" || (slug != "" && slug != p.slug) {
		p.mu.Unlock()
		return
	}
	p.viewerReady = true
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()
	if pending != nil {
		p.Goto(*pending)
	}
}

// Goto applies a page-goto signal. Before readiness, or when the signal
// names a different work than the open document, it is buffered as the
// pending goto (latest wins) and replayed on the matching Ready.
func (p *Pane) Goto(sig Signal) {
	p.mu.Lock()
	if !p.viewerReady || (sig.Slug != "" && sig.Slug != p.slug) {
		s := sig
		p.pending = &s
		p.mu.Unlock()
		return
	}
	rewritten, changed, err := mediaurl.RewriteViewerPage(p.frameURL, sig.PDFPage)
	if err != nil {
		p.mu.Unlock()
		logger.Warn("failed to navigate PDF viewer",
			logger.ErrorField(err),
			logger.String("slug", sig.Slug),
			logger.Int("pdfPage", sig.PDFPage))
		return
	}
	if !changed {
		p.mu.Unlock()
		return
	}
	// 重新加载取景框后需等待新的 ready 确认
	p.frameURL = rewritten
	p.viewerReady = false
	slug := p.slug
	onNavigate := p.onNavigate
	p.mu.Unlock()
	onNavigate(slug, rewritten)
}
