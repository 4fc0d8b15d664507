// Package playback is the authoritative transport for console audio.
// There is no audio engine on the server; each work gets a lazily
// created player whose position advances by wall clock while playing,
// and connected consoles mirror that state. At most one player is in
// the playing state at any time.
package playback

import (
	"sync"
	"time"

	"Praetorius/core/mediaurl"
	"Praetorius/model"
)

// Snapshot is one work's transport state at a point in time.
type Snapshot struct {
	WorkID   int64   `json:"workId"`
	Slug     string  `json:"slug"`
	Position float64 `json:"position"`
	Duration float64 `json:"duration"`
	Playing  bool    `json:"playing"`
}

// player is one work's transport. position is the seek base; while
// playing, the live position is base plus elapsed wall time.
type player struct {
	workID   int64
	slug     string
	src      string
	duration float64
	position float64
	playing  bool
	anchor   time.Time
	stop     chan struct{}
}

// Controller owns every player of one console session.
type Controller struct {
	mu      sync.Mutex
	players map[int64]*player
	tick    time.Duration
	now     func() time.Time

	// onProgress fires for every progress tick and transport change of
	// the affected work.
	onProgress func(Snapshot)
}

// NewController builds a controller ticking progress every tick.
func NewController(tick time.Duration, onProgress func(Snapshot)) *Controller {
	if tick <= 0 {
		tick = 250 * time.Millisecond
	}
	if onProgress == nil {
		onProgress = func(Snapshot) {}
	}
	return &Controller{
		players:    make(map[int64]*player),
		tick:       tick,
		now:        time.Now,
		onProgress: onProgress,
	}
}

// ensurePlayer lazily creates the player for a work, assigning its
// normalized source. Returns nil when the work has no playable source.
func (c *Controller) ensurePlayer(work *model.Work) *player {
	src := mediaurl.NormalizeAudio(work.AudioSource())
	if src == "" {
		return nil
	}
	p, ok := c.players[work.ID]
	if !ok {
		p = &player{workID: work.ID, slug: work.Slug, src: src}
		c.players[work.ID] = p
	}
	p.src = src
	return p
}

// Play pauses every other work's player, seeks the target to
// max(0, atSeconds) and starts it. A work without a playable source is
// a silent no-op reporting false.
func (c *Controller) Play(work *model.Work, atSeconds float64) bool {
	if work == nil {
		return false
	}
	c.mu.Lock()
	p := c.ensurePlayer(work)
	if p == nil {
		c.mu.Unlock()
		return false
	}
	c.pauseAllLocked(work.ID)
	if atSeconds < 0 {
		atSeconds = 0
	}
	p.position = atSeconds
	c.startLocked(p)
	snap := c.snapshotLocked(p)
	c.mu.Unlock()
	c.onProgress(snap)
	return true
}

// Toggle plays from the current position when the work is paused or
// ended, otherwise pauses it. Reports whether a playable source existed.
func (c *Controller) Toggle(work *model.Work) bool {
	if work == nil {
		return false
	}
	c.mu.Lock()
	p := c.ensurePlayer(work)
	if p == nil {
		c.mu.Unlock()
		return false
	}
	if p.playing {
		c.pauseLocked(p)
	} else {
		c.pauseAllLocked(work.ID)
		if c.endedLocked(p) {
			p.position = 0
		}
		c.startLocked(p)
	}
	snap := c.snapshotLocked(p)
	c.mu.Unlock()
	c.onProgress(snap)
	return true
}

// Seek moves the playhead without changing the playing state.
func (c *Controller) Seek(work *model.Work, atSeconds float64) bool {
	if work == nil {
		return false
	}
	c.mu.Lock()
	p := c.ensurePlayer(work)
	if p == nil {
		c.mu.Unlock()
		return false
	}
	if atSeconds < 0 {
		atSeconds = 0
	}
	p.position = atSeconds
	if p.playing {
		p.anchor = c.now()
	}
	snap := c.snapshotLocked(p)
	c.mu.Unlock()
	c.onProgress(snap)
	return true
}

// Pause pauses one work if it is playing.
func (c *Controller) Pause(workID int64) {
	c.mu.Lock()
	p := c.players[workID]
	if p == nil || !p.playing {
		c.mu.Unlock()
		return
	}
	c.pauseLocked(p)
	snap := c.snapshotLocked(p)
	c.mu.Unlock()
	c.onProgress(snap)
}

// PauseAll pauses every player.
func (c *Controller) PauseAll() {
	c.mu.Lock()
	c.pauseAllLocked(0)
	c.mu.Unlock()
}

// SetDuration records a work's known duration so playback can report
// ended state. Zero means unknown (plays until paused).
func (c *Controller) SetDuration(work *model.Work, seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p := c.ensurePlayer(work); p != nil && seconds > 0 {
		p.duration = seconds
	}
}

// Snapshot reports one work's transport state; ok is false when the
// work has never been played.
func (c *Controller) Snapshot(workID int64) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.players[workID]
	if !ok {
		return Snapshot{}, false
	}
	return c.snapshotLocked(p), true
}

// Playing returns the id of the currently playing work, zero when none.
func (c *Controller) Playing() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, p := range c.players {
		if p.playing {
			return id
		}
	}
	return 0
}

// Close stops every progress ticker. The controller is unusable after.
func (c *Controller) Close() {
	c.PauseAll()
}

func (c *Controller) startLocked(p *player) {
	if p.playing {
		return
	}
	p.playing = true
	p.anchor = c.now()
	stop := make(chan struct{})
	p.stop = stop
	go c.progressLoop(p, stop)
}

// pauseLocked folds elapsed time into the seek base and cancels the
// progress ticker. No ticker survives a paused player.
func (c *Controller) pauseLocked(p *player) {
	if !p.playing {
		return
	}
	p.position = c.positionLocked(p)
	p.playing = false
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
}

func (c *Controller) pauseAllLocked(exceptID int64) {
	for id, p := range c.players {
		if id == exceptID {
			continue
		}
		c.pauseLocked(p)
	}
}

func (c *Controller) positionLocked(p *player) float64 {
	pos := p.position
	if p.playing {
		pos += c.now().Sub(p.anchor).Seconds()
	}
	if p.duration > 0 && pos > p.duration {
		pos = p.duration
	}
	return pos
}

func (c *Controller) endedLocked(p *player) bool {
	return p.duration > 0 && c.positionLocked(p) >= p.duration
}

func (c *Controller) snapshotLocked(p *player) Snapshot {
	return Snapshot{
		WorkID:   p.workID,
		Slug:     p.slug,
		Position: c.positionLocked(p),
		Duration: p.duration,
		Playing:  p.playing,
	}
}

// progressLoop drives transport UI refresh while the player plays. It
// exits when the player pauses, ends, or the stop channel closes, so no
// orphaned ticker outlives playback.
func (c *Controller) progressLoop(p *player, stop chan struct{}) {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			if !p.playing || p.stop != stop {
				c.mu.Unlock()
				return
			}
			if c.endedLocked(p) {
				p.position = p.duration
				p.playing = false
				p.stop = nil
				snap := c.snapshotLocked(p)
				c.mu.Unlock()
				c.onProgress(snap)
				return
			}
			snap := c.snapshotLocked(p)
			c.mu.Unlock()
			c.onProgress(snap)
		}
	}
}
