package console_test

import (
	"strings"
	"sync"
	"testing"
	"time"

	"Praetorius/core/console"
	"Praetorius/core/follow"
	"Praetorius/model"
)

func testWorks() []*model.Work {
	start := 12.0
	return []*model.Work{
		{
			ID:       3,
			Slug:     "aubade",
			Title:    "Aubade",
			AudioURL: "https://cdn.example.com/aubade.mp3",
			PDFURL:   "https://cdn.example.com/aubade.pdf",
			Year:     "2019",
			Duration: "6'",
			Medium:   "string quartet",
			Tags:     []string{"chamber", "quartet"},
			Oneliner: "Dawn music for four players.",
			Cues: []model.CuePoint{
				{Seconds: 0, Label: "@0:00"},
				{Seconds: 90, Label: "@coda"},
			},
		},
		{
			ID:      7,
			Slug:    "nocturne",
			Title:   "Nocturne",
			StartAt: &start,
		},
	}
}

func testPageFollows() map[string]model.PageFollow {
	return map[string]model.PageFollow{
		"aubade": {
			PageMap: []model.PageMapEntry{
				{At: 0, Page: 1},
				{At: 30, Page: 2},
				{At: 90, Page: 3},
			},
		},
	}
}

// recorder collects console events under a lock so the playback ticker
// goroutine can emit concurrently with test assertions.
type recorder struct {
	mu      sync.Mutex
	footers []console.FooterSnapshot
	gotos   []follow.Signal
	frames  []string
}

func (r *recorder) events() console.Events {
	return console.Events{
		Footer: func(s console.FooterSnapshot) {
			r.mu.Lock()
			r.footers = append(r.footers, s)
			r.mu.Unlock()
		},
		PDFGoto: func(sig follow.Signal) {
			r.mu.Lock()
			r.gotos = append(r.gotos, sig)
			r.mu.Unlock()
		},
		PDFFrame: func(slug, frameURL string) {
			r.mu.Lock()
			r.frames = append(r.frames, frameURL)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) lastFooter(t *testing.T) console.FooterSnapshot {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.footers) == 0 {
		t.Fatalf("no footer snapshots recorded")
	}
	return r.footers[len(r.footers)-1]
}

func newTestConsole(t *testing.T) (*console.Console, *recorder) {
	t.Helper()
	rec := &recorder{}
	cat := console.NewCatalog(testWorks(), testPageFollows())
	c := console.New(cat, console.Options{
		PlaybackTick: time.Hour, // keep the ticker quiet during tests
		Events:       rec.events(),
	})
	t.Cleanup(c.Teardown)
	return c, rec
}

func TestCatalogIndexAndAdmit(t *testing.T) {
	cat := console.NewCatalog(testWorks(), nil)
	if w := cat.ByID(3); w == nil || w.Slug != "aubade" {
		t.Fatalf("ByID(3) = %v, want aubade", w)
	}
	if w := cat.BySlug("nocturne"); w == nil || w.ID != 7 {
		t.Fatalf("BySlug(nocturne) = %v, want id 7", w)
	}
	if cat.ByID(99) != nil {
		t.Fatalf("ByID(99) should be nil")
	}

	cat.Admit(&model.Work{ID: 99, Slug: "etude", Title: "Étude"})
	if w := cat.ByID(99); w == nil || w.Slug != "etude" {
		t.Fatalf("admitted work not indexed")
	}

	gen := cat.Generation()
	cat.Replace(testWorks(), nil)
	if cat.Generation() == gen {
		t.Fatalf("Replace should bump the generation")
	}
}

func TestSeedBaseJoinsWorkKeys(t *testing.T) {
	cat := console.NewCatalog(testWorks(), nil)
	if got, want := cat.SeedBase(), "aubade|nocturne"; got != want {
		t.Fatalf("SeedBase() = %q, want %q", got, want)
	}
	if console.NewCatalog(nil, nil).SeedBase() != "typescatter" {
		t.Fatalf("empty catalog should use the fallback seed base")
	}
}

func TestSelectionFragmentRoundTrip(t *testing.T) {
	c, _ := newTestConsole(t)
	if !c.SetActive(7, false) {
		t.Fatalf("SetActive(7) failed")
	}
	frag := c.Fragment()
	if frag != "#work=7" {
		t.Fatalf("Fragment() = %q, want #work=7", frag)
	}

	c2, _ := newTestConsole(t)
	if !c2.Hydrate(frag) {
		t.Fatalf("Hydrate(%q) failed", frag)
	}
	if c2.Active() != 7 {
		t.Fatalf("hydrated active = %d, want 7", c2.Active())
	}
}

func TestHydrateRejectsMalformedFragments(t *testing.T) {
	c, _ := newTestConsole(t)
	for _, frag := range []string{"", "#", "#work=", "#work=abc", "#other=3", "#work=999"} {
		if c.Hydrate(frag) {
			t.Errorf("Hydrate(%q) = true, want false", frag)
		}
		if c.Active() != 0 {
			t.Errorf("Hydrate(%q) changed the selection", frag)
		}
	}
}

func TestToggleSelection(t *testing.T) {
	c, rec := newTestConsole(t)
	c.ToggleSelection(3)
	if c.Active() != 3 {
		t.Fatalf("active = %d, want 3", c.Active())
	}
	snap := rec.lastFooter(t)
	if snap.Title != "Aubade" || !snap.CanPlay || !snap.CanPDF || !snap.CanCues {
		t.Fatalf("unexpected footer snapshot: %+v", snap)
	}

	c.ToggleSelection(3)
	if c.Active() != 0 {
		t.Fatalf("second toggle should clear the selection")
	}
	if rec.lastFooter(t).WorkID != 0 {
		t.Fatalf("cleared footer should be empty")
	}
}

func TestEscapeClearsSelection(t *testing.T) {
	c, _ := newTestConsole(t)
	c.SetActive(3, false)
	c.ToggleCues()
	c.Escape()
	if c.Active() != 0 {
		t.Fatalf("Escape should clear the selection")
	}
}

func TestOutsideClick(t *testing.T) {
	c, _ := newTestConsole(t)
	c.SetActive(3, false)

	c.OutsideClick(true, false)
	if c.Active() != 3 {
		t.Fatalf("click inside the field must keep the selection")
	}
	c.OutsideClick(false, true)
	if c.Active() != 3 {
		t.Fatalf("click inside the footer must keep the selection")
	}
	c.OutsideClick(false, false)
	if c.Active() != 0 {
		t.Fatalf("click outside both regions must clear the selection")
	}
}

func TestToggleCuesRequiresCues(t *testing.T) {
	c, rec := newTestConsole(t)

	c.SetActive(3, false)
	if !c.ToggleCues() {
		t.Fatalf("aubade has cues, popover should open")
	}
	if !rec.lastFooter(t).CuesOpen {
		t.Fatalf("footer should reflect the open popover")
	}
	if c.ToggleCues() {
		t.Fatalf("second toggle should close the popover")
	}

	// nocturne has no explicit cues, but its start marker yields one
	c.SetActive(7, false)
	if !c.ToggleCues() {
		t.Fatalf("start marker should count as a cue")
	}
}

func TestPlayAttachesPageFollow(t *testing.T) {
	c, rec := newTestConsole(t)
	if !c.Play(3, 29) {
		t.Fatalf("Play(3) failed")
	}
	if c.Active() != 3 {
		t.Fatalf("playing a work should select it")
	}

	rec.mu.Lock()
	gotos := append([]follow.Signal(nil), rec.gotos...)
	rec.mu.Unlock()
	if len(gotos) != 1 || gotos[0].PrintedPage != 1 {
		t.Fatalf("attach at t=29 should emit printed page 1, got %v", gotos)
	}

	snap := rec.lastFooter(t)
	if !snap.Playing || snap.Position < 29 {
		t.Fatalf("footer should show playback at >=29s, got %+v", snap)
	}
}

func TestPlayWithoutSourceIsNoop(t *testing.T) {
	c, rec := newTestConsole(t)
	if c.Play(7, 0) {
		t.Fatalf("nocturne has no audio, Play should report false")
	}
	rec.mu.Lock()
	n := len(rec.footers)
	rec.mu.Unlock()
	if n != 0 {
		t.Fatalf("sourceless play must not emit footer snapshots")
	}
}

func TestPlayCueSeeksToCue(t *testing.T) {
	c, rec := newTestConsole(t)
	if !c.PlayCue(3, 1) {
		t.Fatalf("PlayCue(3, 1) failed")
	}
	snap := rec.lastFooter(t)
	if snap.Position < 90 {
		t.Fatalf("cue 1 is at 90s, footer shows %v", snap.Position)
	}
	if c.PlayCue(3, 5) {
		t.Fatalf("out-of-range cue index should report false")
	}
}

func TestOpenPDFAndReady(t *testing.T) {
	c, rec := newTestConsole(t)
	frame, ok := c.OpenPDF(3)
	if !ok {
		t.Fatalf("OpenPDF(3) failed")
	}
	if !strings.Contains(frame, "viewer.html?file=") || !strings.Contains(frame, "#page=1") {
		t.Fatalf("unexpected frame URL %q", frame)
	}
	if _, ok := c.OpenPDF(7); ok {
		t.Fatalf("nocturne has no score, OpenPDF should report false")
	}

	c.PDFReady("aubade")
	if !c.Seek(3, 95) {
		t.Fatalf("Seek failed")
	}
	c.Play(3, 95)

	rec.mu.Lock()
	var last follow.Signal
	if len(rec.gotos) > 0 {
		last = rec.gotos[len(rec.gotos)-1]
	}
	rec.mu.Unlock()
	if last.PrintedPage != 3 {
		t.Fatalf("t=95 should land on printed page 3, got %+v", last)
	}
}

func TestItemsCarryVisualSeeds(t *testing.T) {
	c, _ := newTestConsole(t)
	items := c.Items()
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	seeded := false
	for _, item := range items {
		if item.Rotation != 0 || item.LetterJitter != 0 {
			seeded = true
		}
	}
	if !seeded {
		t.Fatalf("at least one item should carry nonzero visual seeds")
	}

	c.SetReduceMotion(true)
	for _, item := range c.Items() {
		if item.Rotation != 0 || item.LetterJitter != 0 {
			t.Fatalf("reduced motion must zero effective seeds: %+v", item)
		}
	}
}

func TestStackModules(t *testing.T) {
	c, rec := newTestConsole(t)
	c.SetActive(3, false)
	snap := rec.lastFooter(t)
	if len(snap.Stack) != 2 {
		t.Fatalf("expected oneliner + details, got %+v", snap.Stack)
	}
	details := snap.Stack[1].Text
	want := "2019 · 6' · string quartet · #chamber · #quartet"
	if details != want {
		t.Fatalf("details = %q, want %q", details, want)
	}

	c.SetActive(7, false)
	snap = rec.lastFooter(t)
	if len(snap.Stack) != 1 || snap.Stack[0].Text != "#nocturne" {
		t.Fatalf("bare work should fall back to its slug tag, got %+v", snap.Stack)
	}
}

func TestThemeNormalization(t *testing.T) {
	cases := []struct {
		raw  string
		want console.Theme
	}{
		{"dark", console.ThemeDark},
		{" Dark ", console.ThemeDark},
		{"light", console.ThemeLight},
		{"", console.ThemeLight},
		{"sepia", console.ThemeLight},
	}
	for _, tc := range cases {
		if got := console.NormalizeTheme(tc.raw); got != tc.want {
			t.Errorf("NormalizeTheme(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestDecodeStoredThemeLegacyEnvelope(t *testing.T) {
	if got, ok := console.DecodeStoredTheme(`{"mode":"dark"}`); !ok || got != console.ThemeDark {
		t.Fatalf("legacy envelope decoded to (%q, %v)", got, ok)
	}
	if got, ok := console.DecodeStoredTheme("light"); !ok || got != console.ThemeLight {
		t.Fatalf("plain value decoded to (%q, %v)", got, ok)
	}
	if _, ok := console.DecodeStoredTheme(""); ok {
		t.Fatalf("empty storage should decode as absent")
	}
	if _, ok := console.DecodeStoredTheme("{broken"); ok {
		t.Fatalf("broken envelope should decode as absent")
	}
}

func TestResolveThemeHonorsSystemLight(t *testing.T) {
	if got := console.ResolveTheme(console.ThemeLight, false, false); got != console.ThemeLight {
		t.Fatalf("no stored + light system resolved to %q, want light", got)
	}
	if got := console.ResolveTheme(console.ThemeLight, false, true); got != console.ThemeDark {
		t.Fatalf("no stored + dark system resolved to %q, want dark", got)
	}
	if got := console.ResolveTheme(console.ThemeLight, true, true); got != console.ThemeLight {
		t.Fatalf("stored light must win over a dark system, got %q", got)
	}
}

func TestToggleTheme(t *testing.T) {
	if got := console.ToggleTheme(console.ThemeLight); got != console.ThemeDark {
		t.Fatalf("ToggleTheme(light) = %q, want dark", got)
	}
	if got := console.ToggleTheme(console.ThemeDark); got != console.ThemeLight {
		t.Fatalf("ToggleTheme(dark) = %q, want light", got)
	}
}

func TestSyncCatalogRebuildsOnReplace(t *testing.T) {
	rec := &recorder{}
	cat := console.NewCatalog(testWorks(), testPageFollows())
	c := console.New(cat, console.Options{PlaybackTick: time.Hour, Events: rec.events()})
	t.Cleanup(c.Teardown)

	if c.SyncCatalog() {
		t.Fatalf("fresh console must not be stale")
	}
	c.SetActive(7, false)

	cat.Replace([]*model.Work{{ID: 3, Slug: "aubade", Title: "Aubade"}}, nil)
	if !c.SyncCatalog() {
		t.Fatalf("replaced catalog must be stale")
	}
	if c.Active() != 0 {
		t.Fatalf("selection of a removed work must clear")
	}
	if len(c.Items()) != 1 {
		t.Fatalf("items must rebuild to the new catalog")
	}
}
