package follow_test

import (
	"reflect"
	"strings"
	"testing"

	"Praetorius/core/follow"
	"Praetorius/model"
)

func nocturneConfigs() map[string]model.PageFollow {
	return map[string]model.PageFollow{
		"nocturne": {
			PageMap: []model.PageMapEntry{
				{At: 0, Page: 1},
				{At: 30, Page: 2},
				{At: 90, Page: 3},
			},
			PDFStartPage: 1,
		},
	}
}

func TestPrintedPageFloorLookup(t *testing.T) {
	cfg := nocturneConfigs()["nocturne"]
	cases := []struct {
		t    float64
		want int
	}{
		{0, 1}, {29, 1}, {30, 2}, {89, 2}, {90, 3}, {500, 3},
	}
	for _, tc := range cases {
		if got := follow.PrintedPageForTime(cfg, tc.t); got != tc.want {
			t.Errorf("PrintedPageForTime(%v) = %d, want %d", tc.t, got, tc.want)
		}
	}
}

func TestPrintedPageWithMediaOffset(t *testing.T) {
	cfg := nocturneConfigs()["nocturne"]
	cfg.MediaOffsetSec = 5
	if got := follow.PrintedPageForTime(cfg, 25); got != 2 {
		t.Fatalf("offset-adjusted lookup = %d, want 2", got)
	}
}

func TestPrintedPageDefaultsBeforeFirstBreakpoint(t *testing.T) {
	cfg := model.PageFollow{PageMap: []model.PageMapEntry{{At: 10, Page: 4}}}
	if got := follow.PrintedPageForTime(cfg, 3); got != 4 {
		t.Fatalf("pre-breakpoint lookup = %d, want first entry's page 4", got)
	}
	if got := follow.PrintedPageForTime(model.PageFollow{}, 3); got != 1 {
		t.Fatalf("empty map lookup = %d, want 1", got)
	}
}

func TestPDFPageCorrection(t *testing.T) {
	cfg := model.PageFollow{PDFStartPage: 3, PDFDelta: -1}
	if got := follow.PDFPageFor(cfg, 2); got != 3 {
		t.Fatalf("PDFPageFor = %d, want 3", got)
	}
	if got := follow.PDFPageFor(model.PageFollow{}, 1); got != 1 {
		t.Fatalf("zero-value config PDFPageFor = %d, want 1", got)
	}
}

func TestMonotonicTimeEmitsOnceNearEachBreakpoint(t *testing.T) {
	var signals []follow.Signal
	sync := follow.NewSynchronizer(nocturneConfigs(), func(s follow.Signal) {
		signals = append(signals, s)
	})

	if !sync.Attach("nocturne", 0) {
		t.Fatal("attach with known config should succeed")
	}
	// attach evaluates immediately: one signal for page 1
	for _, tm := range []float64{29, 30, 89, 90} {
		sync.OnTime("nocturne", tm)
	}

	want := []follow.Signal{
		{Slug: "nocturne", PrintedPage: 1, PDFPage: 1},
		{Slug: "nocturne", PrintedPage: 2, PDFPage: 2},
		{Slug: "nocturne", PrintedPage: 3, PDFPage: 3},
	}
	if !reflect.DeepEqual(signals, want) {
		t.Fatalf("signals = %+v, want %+v", signals, want)
	}
}

func TestAttachUnknownSlugStaysDetached(t *testing.T) {
	sync := follow.NewSynchronizer(nocturneConfigs(), nil)
	if sync.Attach("unknown", 0) {
		t.Fatal("attach without config should fail")
	}
	if sync.Attached() != "" {
		t.Fatal("synchronizer should be detached")
	}
}

func TestAttachReplacesPriorBinding(t *testing.T) {
	configs := nocturneConfigs()
	configs["aubade"] = model.PageFollow{PageMap: []model.PageMapEntry{{At: 0, Page: 1}}}
	var signals []follow.Signal
	sync := follow.NewSynchronizer(configs, func(s follow.Signal) { signals = append(signals, s) })

	sync.Attach("nocturne", 0)
	sync.Attach("aubade", 0)
	if sync.Attached() != "aubade" {
		t.Fatalf("attached = %q, want aubade", sync.Attached())
	}
	// events for the replaced slug are ignored
	sync.OnTime("nocturne", 95)
	for _, s := range signals {
		if s.Slug == "nocturne" && s.PrintedPage == 3 {
			t.Fatal("stale slug event should not emit")
		}
	}
}

func TestDetachIsIdempotent(t *testing.T) {
	sync := follow.NewSynchronizer(nocturneConfigs(), nil)
	sync.Attach("nocturne", 0)
	sync.Detach()
	sync.Detach()
	if sync.Attached() != "" {
		t.Fatal("expected detached")
	}
	sync.OnTime("nocturne", 45) // no panic, no emission
}

func TestPaneBuffersGotoUntilReady(t *testing.T) {
	var navigations []string
	pane := follow.NewPane(func(slug, frameURL string) {
		navigations = append(navigations, frameURL)
	})
	pane.Open("nocturne", "https://example.com/scores/nocturne.pdf")
	if len(navigations) != 1 {
		t.Fatalf("open should navigate once, got %d", len(navigations))
	}

	// the viewer has not acknowledged yet: both gotos buffer, latest wins
	pane.Goto(follow.Signal{Slug: "nocturne", PrintedPage: 2, PDFPage: 2})
	pane.Goto(follow.Signal{Slug: "nocturne", PrintedPage: 3, PDFPage: 3})
	if len(navigations) != 1 {
		t.Fatalf("gotos before ready should buffer, got %d navigations", len(navigations))
	}

	pane.Ready("nocturne")
	if len(navigations) != 2 {
		t.Fatalf("ready should flush the pending goto, got %d navigations", len(navigations))
	}
	if !strings.Contains(navigations[1], "page=3") {
		t.Fatalf("flushed goto should be the latest (page 3): %q", navigations[1])
	}
}

func TestPaneIgnoresReadyForOtherDocument(t *testing.T) {
	var navigations []string
	pane := follow.NewPane(func(slug, frameURL string) {
		navigations = append(navigations, frameURL)
	})
	pane.Open("nocturne", "https://example.com/scores/nocturne.pdf")
	pane.Goto(follow.Signal{Slug: "nocturne", PrintedPage: 2, PDFPage: 2})
	pane.Ready("aubade")
	if len(navigations) != 1 {
		t.Fatal("ready for another slug should not flush")
	}
}

func TestPaneGotoNoopWhenPageMatches(t *testing.T) {
	var navigations []string
	pane := follow.NewPane(func(slug, frameURL string) {
		navigations = append(navigations, frameURL)
	})
	pane.Open("nocturne", "https://example.com/scores/nocturne.pdf")
	pane.Ready("nocturne")
	pane.Goto(follow.Signal{Slug: "nocturne", PrintedPage: 1, PDFPage: 1})
	if len(navigations) != 1 {
		t.Fatal("goto to the current page should not reload the frame")
	}
}

func TestPaneGotoForOtherSlugBuffers(t *testing.T) {
	pane := follow.NewPane(nil)
	pane.Open("nocturne", "https://example.com/scores/nocturne.pdf")
	pane.Ready("nocturne")
	pane.Goto(follow.Signal{Slug: "aubade", PrintedPage: 2, PDFPage: 2})
	if got := pane.Slug(); got != "nocturne" {
		t.Fatalf("pane slug changed unexpectedly to %q", got)
	}
}
