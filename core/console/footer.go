package console

import (
	"strings"

	"Praetorius/core/mediaurl"
	"Praetorius/model"
)

// StackModule is one block of the footer's work stack.
type StackModule struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// FooterSnapshot is the console footer's full render state for the
// current selection, empty (WorkID zero) when nothing is selected.
type FooterSnapshot struct {
	WorkID   int64            `json:"workId"`
	Title    string           `json:"title"`
	CanPlay  bool             `json:"canPlay"`
	CanPDF   bool             `json:"canPdf"`
	CanCues  bool             `json:"canCues"`
	Playing  bool             `json:"playing"`
	Position float64          `json:"position"`
	Duration float64          `json:"duration"`
	Cues     []model.CuePoint `json:"cues,omitempty"`
	CuesOpen bool             `json:"cuesOpen"`
	Live     string           `json:"live"`
	Stack    []StackModule    `json:"stack,omitempty"`
}

// emitFooter snapshots the footer for the active work and pushes it out.
func (c *Console) emitFooter() {
	c.mu.Lock()
	active := c.activeWorkID
	cuesOpen := c.cuesOpen
	c.mu.Unlock()

	snap := FooterSnapshot{}
	if work := c.workByID(active); work != nil {
		cues := work.NormalizeCues()
		snap = FooterSnapshot{
			WorkID:   work.ID,
			Title:    work.DisplayTitle(),
			CanPlay:  mediaurl.NormalizeAudio(work.AudioSource()) != "",
			CanPDF:   work.PDFURL != "",
			CanCues:  len(cues) > 0,
			Cues:     cues,
			CuesOpen: cuesOpen,
			Stack:    stackModules(work),
		}
		if ps, ok := c.player.Snapshot(work.ID); ok {
			snap.Playing = ps.Playing
			snap.Position = ps.Position
			snap.Duration = ps.Duration
		}
		snap.Live = liveText(snap)
	}
	c.events.Footer(snap)
}

// stackModules assembles the footer stack for a work: oneliner, then
// description, then the details line, skipping empty blocks. A work
// with nothing to say still gets its slug as a tag line.
func stackModules(work *model.Work) []StackModule {
	var stack []StackModule
	if s := strings.TrimSpace(work.Oneliner); s != "" {
		stack = append(stack, StackModule{Kind: "oneliner", Text: s})
	}
	if s := strings.TrimSpace(work.Description); s != "" {
		stack = append(stack, StackModule{Kind: "description", Text: s})
	}
	if s := detailsLine(work); s != "" {
		stack = append(stack, StackModule{Kind: "details", Text: s})
	}
	if len(stack) == 0 && work.Slug != "" {
		stack = append(stack, StackModule{Kind: "details", Text: "#" + work.Slug})
	}
	return stack
}

// detailsLine joins the work's metadata with mid-dots: year, duration,
// medium, then hash-prefixed tags.
func detailsLine(work *model.Work) string {
	var parts []string
	if s := strings.TrimSpace(work.Year); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(work.Duration); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(work.Medium); s != "" {
		parts = append(parts, s)
	}
	for _, tag := range work.Tags {
		if t := strings.TrimSpace(tag); t != "" {
			parts = append(parts, "#"+t)
		}
	}
	return strings.Join(parts, " · ")
}

// liveText phrases the assistive-technology live region: selection
// first, then the transport state with a formatted position.
func liveText(snap FooterSnapshot) string {
	if snap.WorkID == 0 {
		return ""
	}
	if !snap.CanPlay {
		return snap.Title + " selected."
	}
	state := "paused"
	if snap.Playing {
		state = "playing"
	}
	return snap.Title + " " + state + " at " + model.FormatTime(snap.Position) + "."
}
