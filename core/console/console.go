// Package console is the composition root of the works console: one
// Console per visitor session, owning selection state, the scatter
// field, the playback transport and the page-follow machinery, with all
// dependencies injected rather than living in ambient globals.
package console

import (
	"net/url"
	"strconv"
	"sync"
	"time"

	"Praetorius/core/follow"
	"Praetorius/core/playback"
	"Praetorius/core/scatter"
	"Praetorius/core/seeded"
	"Praetorius/model"
)

const hashWorkKey = "work"

// Events are the session's outbound notifications. Any hook may be nil.
type Events struct {
	// Footer fires on every selection or transport change.
	Footer func(FooterSnapshot)
	// PDFFrame fires when the score pane navigates its viewer frame.
	PDFFrame func(slug, frameURL string)
	// PDFGoto mirrors every page-goto signal for observers.
	PDFGoto func(follow.Signal)
	// Announce carries assistive-technology announcements.
	Announce func(string)
}

// Options tune a console session.
type Options struct {
	Engine       *scatter.Engine
	PlaybackTick time.Duration
	ReduceMotion bool
	Events       Events
}

// Console drives one visitor's works console.
type Console struct {
	catalog *Catalog
	field   *scatter.Field
	player  *playback.Controller
	sync    *follow.Synchronizer
	pane    *follow.Pane
	events  Events

	mu           sync.Mutex
	generation   uint64
	activeWorkID int64
	cuesOpen     bool
	reduceMotion bool
	closed       bool
}

// New builds a console session over the shared catalog and initializes
// its item field.
func New(catalog *Catalog, opts Options) *Console {
	engine := opts.Engine
	if engine == nil {
		engine = scatter.NewEngine(0, 0, 0)
	}
	events := opts.Events
	if events.Footer == nil {
		events.Footer = func(FooterSnapshot) {}
	}
	if events.PDFFrame == nil {
		events.PDFFrame = func(string, string) {}
	}
	if events.PDFGoto == nil {
		events.PDFGoto = func(follow.Signal) {}
	}
	if events.Announce == nil {
		events.Announce = func(string) {}
	}

	c := &Console{
		catalog:      catalog,
		field:        scatter.NewField(engine),
		events:       events,
		reduceMotion: opts.ReduceMotion,
	}
	c.pane = follow.NewPane(events.PDFFrame)
	c.sync = follow.NewSynchronizer(catalog.PageFollows(), func(sig follow.Signal) {
		c.events.PDFGoto(sig)
		c.pane.Goto(sig)
	})
	c.player = playback.NewController(opts.PlaybackTick, c.handleProgress)
	c.rebuildItems()
	return c
}

// Teardown stops playback timers and detaches the follow machinery.
// The console must not be used afterwards.
func (c *Console) Teardown() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.player.Close()
	c.sync.Detach()
	c.pane.Close()
}

// rebuildItems regenerates the layout items for the current catalog
// generation, drawing each item's persistent visual seeds from the
// catalog-derived generator.
func (c *Console) rebuildItems() {
	works := c.catalog.Works()
	items := make([]*scatter.Item, len(works))
	for i, work := range works {
		items[i] = &scatter.Item{
			WorkID: work.ID,
			Key:    workKey(work),
			Width:  scatter.DefaultWidth,
			Height: scatter.DefaultHeight,
		}
	}
	scatter.AssignVisualSeeds(items, seeded.New(c.catalog.SeedBase()))
	c.field.SetItems(items)
	c.mu.Lock()
	c.generation = c.catalog.Generation()
	c.mu.Unlock()
}

// SyncCatalog rebuilds items when the catalog generation changed since
// the session last looked, reporting whether a rebuild happened. The
// active selection is dropped when its work disappeared.
func (c *Console) SyncCatalog() bool {
	c.mu.Lock()
	stale := c.generation != c.catalog.Generation()
	c.mu.Unlock()
	if !stale {
		return false
	}
	c.player.PauseAll()
	c.sync.Detach()
	c.sync.SetConfigs(c.catalog.PageFollows())
	c.rebuildItems()
	c.mu.Lock()
	active := c.activeWorkID
	c.mu.Unlock()
	if active != 0 && c.catalog.ByID(active) == nil {
		c.Clear(false)
	}
	return true
}

// Field exposes the scatter field for layout-cache keying.
func (c *Console) Field() *scatter.Field {
	return c.field
}

// Layout computes (or reapplies) field positions for a box.
func (c *Console) Layout(box scatter.Box, force bool) (map[int64]scatter.Position, bool) {
	return c.field.Layout(box, force)
}

// Measure records client-reported item extents.
func (c *Console) Measure(workID int64, width, height float64) {
	c.field.Measure(workID, width, height)
}

// Drag repositions one item under pointer control.
func (c *Console) Drag(workID int64, pos scatter.Position) (scatter.Position, bool) {
	return c.field.Drag(workID, pos)
}

// Items describes the current item generation for rendering.
func (c *Console) Items() []ItemState {
	c.mu.Lock()
	reduce := c.reduceMotion
	c.mu.Unlock()
	items := c.field.Items()
	positions := c.field.Positions()
	out := make([]ItemState, 0, len(items))
	for _, item := range items {
		work := c.catalog.ByID(item.WorkID)
		if work == nil {
			continue
		}
		state := ItemState{
			WorkID:       item.WorkID,
			Title:        work.DisplayTitle(),
			Width:        item.Width,
			Height:       item.Height,
			Rotation:     item.Rotation,
			LetterJitter: item.LetterJitter,
		}
		if reduce {
			// identity persists but the effective motion is zeroed
			state.Rotation = 0
			state.LetterJitter = 0
		}
		if pos, ok := positions[item.WorkID]; ok {
			state.X = pos.X
			state.Y = pos.Y
		}
		out = append(out, state)
	}
	return out
}

// SetReduceMotion toggles reduced-motion rendering.
func (c *Console) SetReduceMotion(reduce bool) {
	c.mu.Lock()
	c.reduceMotion = reduce
	c.mu.Unlock()
}

// ItemState is one rendered item: layout position plus the persistent
// visual seeds (zeroed under reduced motion).
type ItemState struct {
	WorkID       int64   `json:"workId"`
	Title        string  `json:"title"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Width        float64 `json:"width"`
	Height       float64 `json:"height"`
	Rotation     float64 `json:"rotation"`
	LetterJitter float64 `json:"letterJitter"`
}

// workByID resolves a work, admitting nothing; nil when unknown.
func (c *Console) workByID(id int64) *model.Work {
	return c.catalog.ByID(id)
}

// SetActive marks exactly one work active: closes the cue popover,
// persists the selection fragment and pushes a fresh footer snapshot.
// Unknown ids are ignored.
func (c *Console) SetActive(workID int64, announce bool) bool {
	work := c.workByID(workID)
	if work == nil {
		return false
	}
	c.mu.Lock()
	c.cuesOpen = false
	c.activeWorkID = workID
	c.mu.Unlock()
	c.emitFooter()
	if announce {
		c.events.Announce(work.DisplayTitle() + " selected.")
	}
	return true
}

// Clear drops the active selection.
func (c *Console) Clear(announce bool) {
	c.mu.Lock()
	c.activeWorkID = 0
	c.cuesOpen = false
	c.mu.Unlock()
	c.emitFooter()
	if announce {
		c.events.Announce("Selection cleared.")
	}
}

// ToggleSelection flips a work's selected state; opening a selection
// pauses every other work's audio first.
func (c *Console) ToggleSelection(workID int64) {
	c.mu.Lock()
	active := c.activeWorkID
	c.mu.Unlock()
	if active == workID {
		c.Clear(true)
		return
	}
	c.pauseAllExcept(workID)
	c.SetActive(workID, true)
}

// Active reports the active work id, zero when none.
func (c *Console) Active() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeWorkID
}

// Escape closes the cue popover and clears the selection, in that
// priority.
func (c *Console) Escape() {
	c.mu.Lock()
	c.cuesOpen = false
	c.mu.Unlock()
	c.Clear(true)
}

// OutsideClick handles a click outside the named regions: first the cue
// popover closes, then a click outside both field and footer clears the
// selection.
func (c *Console) OutsideClick(inField, inFooter bool) {
	c.mu.Lock()
	if c.cuesOpen && !inFooter {
		c.cuesOpen = false
	}
	c.mu.Unlock()
	if !inField && !inFooter {
		c.Clear(true)
	}
}

// ToggleCues flips the cue popover when the active work has cues.
func (c *Console) ToggleCues() bool {
	c.mu.Lock()
	work := c.workByIDLocked(c.activeWorkID)
	if work == nil || len(work.NormalizeCues()) == 0 {
		c.mu.Unlock()
		return false
	}
	c.cuesOpen = !c.cuesOpen
	open := c.cuesOpen
	c.mu.Unlock()
	c.emitFooter()
	return open
}

// workByIDLocked must be called with c.mu held; it bypasses the lock
// only because Catalog has its own.
func (c *Console) workByIDLocked(id int64) *model.Work {
	if id == 0 {
		return nil
	}
	return c.catalog.ByID(id)
}

// Fragment encodes the selection for the URL: "#work=<id>" or "#".
func (c *Console) Fragment() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeWorkID == 0 {
		return "#"
	}
	return "#" + hashWorkKey + "=" + strconv.FormatInt(c.activeWorkID, 10)
}

// Hydrate restores the selection from a URL fragment; unknown or
// malformed fragments leave the console untouched.
func (c *Console) Hydrate(fragment string) bool {
	trimmed := fragment
	if len(trimmed) > 0 && trimmed[0] == '#' {
		trimmed = trimmed[1:]
	}
	if trimmed == "" {
		return false
	}
	params, err := url.ParseQuery(trimmed)
	if err != nil {
		return false
	}
	raw := params.Get(hashWorkKey)
	if raw == "" {
		return false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false
	}
	return c.SetActive(id, false)
}

// Play starts a work from an absolute offset, pausing everything else,
// attaching page-follow and making the work active. A work without a
// playable source reports false and changes nothing.
func (c *Console) Play(workID int64, atSeconds float64) bool {
	work := c.workByID(workID)
	if work == nil {
		return false
	}
	if !c.player.Play(work, atSeconds) {
		return false
	}
	c.attachFollow(work)
	c.SetActive(workID, false)
	return true
}

// Toggle flips a work's playback; reports whether a playable source
// existed.
func (c *Console) Toggle(workID int64) bool {
	work := c.workByID(workID)
	if work == nil {
		return false
	}
	if !c.player.Toggle(work) {
		return false
	}
	if snap, ok := c.player.Snapshot(workID); ok && snap.Playing {
		c.attachFollow(work)
		c.SetActive(workID, false)
	} else {
		c.emitFooter()
	}
	return true
}

// Pause stops a work's playback; a fresh footer follows.
func (c *Console) Pause(workID int64) {
	c.player.Pause(workID)
	c.emitFooter()
}

// Seek moves the active playhead.
func (c *Console) Seek(workID int64, atSeconds float64) bool {
	work := c.workByID(workID)
	if work == nil {
		return false
	}
	return c.player.Seek(work, atSeconds)
}

// PlayCue seeks-and-plays one of the active work's cue points.
func (c *Console) PlayCue(workID int64, index int) bool {
	work := c.workByID(workID)
	if work == nil {
		return false
	}
	cues := work.NormalizeCues()
	if index < 0 || index >= len(cues) {
		return false
	}
	c.mu.Lock()
	c.cuesOpen = false
	c.mu.Unlock()
	return c.Play(workID, cues[index].Seconds)
}

// SetDuration records a client-reported media duration for a work.
func (c *Console) SetDuration(workID int64, seconds float64) {
	if work := c.workByID(workID); work != nil {
		c.player.SetDuration(work, seconds)
	}
}

func (c *Console) pauseAllExcept(workID int64) {
	playing := c.player.Playing()
	if playing != 0 && playing != workID {
		c.player.Pause(playing)
	}
}

// attachFollow binds the synchronizer to a work's transport when a
// page-follow config exists for it.
func (c *Console) attachFollow(work *model.Work) {
	pos := 0.0
	if snap, ok := c.player.Snapshot(work.ID); ok {
		pos = snap.Position
	}
	c.sync.Attach(work.Slug, pos)
}

// handleProgress receives every transport tick and change: it feeds the
// follow synchronizer and refreshes the footer when the event concerns
// the active work.
func (c *Console) handleProgress(snap playback.Snapshot) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	active := c.activeWorkID
	c.mu.Unlock()
	c.sync.OnTime(snap.Slug, snap.Position)
	if snap.WorkID == active {
		c.emitFooter()
	}
}

// OpenPDF opens the score pane for a work, attaching page-follow, and
// returns the viewer frame URL. False when the work has no score.
func (c *Console) OpenPDF(workID int64) (string, bool) {
	work := c.workByID(workID)
	if work == nil {
		return "", false
	}
	raw := work.PDFURL
	if raw == "" {
		return "", false
	}
	frame := c.pane.Open(work.Slug, raw)
	if c.sync.Attached() != work.Slug {
		c.attachFollow(work)
	}
	return frame, true
}

// ClosePDF hides the score pane and detaches page-follow.
func (c *Console) ClosePDF() {
	c.pane.Close()
	c.sync.Detach()
}

// PDFReady acknowledges viewer readiness, flushing any pending goto.
func (c *Console) PDFReady(slug string) {
	c.pane.Ready(slug)
}

// PDFFrameURL reports the score pane's current frame URL.
func (c *Console) PDFFrameURL() string {
	return c.pane.FrameURL()
}
