package model

import (
	"math"
	"time"
)

// Work represents one composition in the portfolio catalog.
// Raw feed records carry alternate key spellings (audio/audioUrl,
// pdf/pdfUrl, loose cue shapes); those are normalized into this
// canonical form at the ingestion boundary and never leak past it.
type Work struct {
	ID          int64      `json:"id" gorm:"primaryKey"`
	Slug        string     `json:"slug" gorm:"uniqueIndex;size:191"`
	Title       string     `json:"title"`
	AudioURL    string     `json:"audioUrl"`
	PDFURL      string     `json:"pdfUrl"`
	Year        string     `json:"year,omitempty"`
	Duration    string     `json:"duration,omitempty"`
	Medium      string     `json:"medium,omitempty"`
	Tags        []string   `json:"tags,omitempty" gorm:"serializer:json"`
	OpenNote    []string   `json:"openNote,omitempty" gorm:"serializer:json"`
	Oneliner    string     `json:"onelinerEffective,omitempty"`
	Description string     `json:"descriptionEffective,omitempty"`
	StartAt     *float64   `json:"start_at,omitempty"`
	Cues        []CuePoint `json:"cues,omitempty" gorm:"serializer:json"`
	State       int8       `json:"state" gorm:"default:1"` // 0=soft deleted, 1=normal
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// CuePoint is a normalized cue: absolute seconds plus a display label.
type CuePoint struct {
	Seconds float64 `json:"seconds"`
	Label   string  `json:"label"`
}

// PageMapEntry maps an audio timestamp to a printed score page.
type PageMapEntry struct {
	At   float64 `json:"at"`
	Page int     `json:"page"`
}

// PageFollow is the per-work page-follow configuration: the printed-page
// map plus the offset/delta correction into the PDF document's own
// numbering.
type PageFollow struct {
	PageMap        []PageMapEntry `json:"pageMap"`
	MediaOffsetSec float64        `json:"mediaOffsetSec"`
	PDFStartPage   int            `json:"pdfStartPage"`
	PDFDelta       int            `json:"pdfDelta"`
}

// AudioSource returns the work's raw audio source URL, empty when the
// work has none.
func (w *Work) AudioSource() string {
	return w.AudioURL
}

// DisplayTitle falls back to the slug when no title is set.
func (w *Work) DisplayTitle() string {
	if w.Title != "" {
		return w.Title
	}
	if w.Slug != "" {
		return w.Slug
	}
	return "Untitled"
}

// NormalizeCues reduces the work's cue list to a canonical, de-duplicated
// form. Labels default to "@m:ss"; entries whose seconds are not finite
// are dropped. When the work has no cues at all, its start_at marker (if
// any) yields a single synthetic cue. Normalizing an already-normalized
// list is a no-op.
func (w *Work) NormalizeCues() []CuePoint {
	cues := make([]CuePoint, 0, len(w.Cues))
	for _, cue := range w.Cues {
		label := cue.Label
		if label == "" {
			label = "@" + FormatTime(cue.Seconds)
		} else if label[0] != '@' {
			label = "@" + label
		}
		cues = append(cues, CuePoint{Seconds: cue.Seconds, Label: label})
	}
	if len(cues) == 0 && w.StartAt != nil && !math.IsNaN(*w.StartAt) && !math.IsInf(*w.StartAt, 0) {
		cues = append(cues, CuePoint{Seconds: *w.StartAt, Label: "@" + FormatTime(*w.StartAt)})
	}
	return dedupeCues(cues)
}

func dedupeCues(cues []CuePoint) []CuePoint {
	seen := make(map[CuePoint]struct{}, len(cues))
	out := cues[:0]
	for _, cue := range cues {
		if math.IsNaN(cue.Seconds) || math.IsInf(cue.Seconds, 0) {
			continue
		}
		if _, dup := seen[cue]; dup {
			continue
		}
		seen[cue] = struct{}{}
		out = append(out, cue)
	}
	return out
}
