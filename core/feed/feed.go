// Package feed hydrates the console catalog from the works JSON file.
// Feed records arrive with alternate key spellings (audio/audioUrl,
// pdf/pdfUrl, loose cue shapes, page maps with cue-string timestamps);
// everything is normalized into the canonical model types here so the
// layout, playback and follow engines never see a raw shape.
package feed

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"Praetorius/model"
)

// Document is a fully normalized feed: the work list plus per-slug
// page-follow configuration.
type Document struct {
	Works       []*model.Work
	PageFollows map[string]model.PageFollow
}

type rawFeed struct {
	Works          []rawWork                `json:"works"`
	PageFollowMaps map[string]rawPageFollow `json:"pageFollowMaps"`
}

type rawWork struct {
	ID          int64          `json:"id"`
	Slug        string         `json:"slug"`
	Title       string         `json:"title"`
	Audio       string         `json:"audio"`
	AudioURL    string         `json:"audioUrl"`
	PDF         string         `json:"pdf"`
	PDFURL      string         `json:"pdfUrl"`
	Year        interface{}    `json:"year"`
	Duration    interface{}    `json:"duration"`
	Medium      string         `json:"medium"`
	Tags        []string       `json:"tags"`
	OpenNote    []string       `json:"openNote"`
	Oneliner    string         `json:"onelinerEffective"`
	Description string         `json:"descriptionEffective"`
	StartAt     *float64       `json:"start_at"`
	Cues        []interface{}  `json:"cues"`
	PageFollow  *rawPageFollow `json:"pageFollow"`
}

type rawPageFollow struct {
	PageMap        []rawPageMapEntry `json:"pageMap"`
	MediaOffsetSec float64           `json:"mediaOffsetSec"`
	PDFStartPage   int               `json:"pdfStartPage"`
	PDFDelta       int               `json:"pdfDelta"`
}

type rawPageMapEntry struct {
	At   interface{} `json:"at"`
	Page int         `json:"page"`
}

// Load reads and normalizes the feed file. Works are ordered by
// case-insensitive title (slug fallback), matching the console's field
// order. Per-work pageFollow blocks fill gaps in the top-level map.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read works feed: %w", err)
	}
	return Parse(data)
}

// Parse normalizes raw feed bytes.
func Parse(data []byte) (*Document, error) {
	var raw rawFeed
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode works feed: %w", err)
	}

	doc := &Document{PageFollows: make(map[string]model.PageFollow)}
	for slug, pf := range raw.PageFollowMaps {
		doc.PageFollows[slug] = normalizePageFollow(pf)
	}
	for _, rw := range raw.Works {
		work := normalizeWork(rw)
		doc.Works = append(doc.Works, work)
		if rw.PageFollow != nil && work.Slug != "" {
			if _, exists := doc.PageFollows[work.Slug]; !exists {
				doc.PageFollows[work.Slug] = normalizePageFollow(*rw.PageFollow)
			}
		}
	}

	sort.SliceStable(doc.Works, func(i, j int) bool {
		return sortKey(doc.Works[i]) < sortKey(doc.Works[j])
	})
	return doc, nil
}

func sortKey(w *model.Work) string {
	if w.Title != "" {
		return strings.ToLower(w.Title)
	}
	return strings.ToLower(w.Slug)
}

func normalizeWork(rw rawWork) *model.Work {
	audio := rw.AudioURL
	if audio == "" {
		audio = rw.Audio
	}
	pdf := rw.PDFURL
	if pdf == "" {
		pdf = rw.PDF
	}
	work := &model.Work{
		ID:          rw.ID,
		Slug:        rw.Slug,
		Title:       rw.Title,
		AudioURL:    audio,
		PDFURL:      pdf,
		Year:        asString(rw.Year),
		Duration:    asString(rw.Duration),
		Medium:      rw.Medium,
		Tags:        rw.Tags,
		OpenNote:    rw.OpenNote,
		Oneliner:    rw.Oneliner,
		Description: rw.Description,
		StartAt:     rw.StartAt,
		State:       1,
	}
	work.Cues = normalizeRawCues(rw.Cues)
	return work
}

// asString renders a feed value that may arrive as either a string or a
// number ("2021" vs 2021).
func asString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// normalizeRawCues accepts the heterogeneous cue spellings: bare
// numbers, time strings, and objects whose timestamp hides behind any
// of t/time/at/start/seconds/index with an optional label.
func normalizeRawCues(raw []interface{}) []model.CuePoint {
	cues := make([]model.CuePoint, 0, len(raw))
	for _, entry := range raw {
		switch cue := entry.(type) {
		case nil:
			continue
		case map[string]interface{}:
			seconds := model.CueSeconds(firstOf(cue, "t", "time", "at", "start", "seconds", "index"))
			label := ""
			if l, ok := cue["label"].(string); ok && strings.TrimSpace(l) != "" {
				label = strings.TrimSpace(l)
			}
			cues = append(cues, model.CuePoint{Seconds: seconds, Label: label})
		default:
			cues = append(cues, model.CuePoint{Seconds: model.CueSeconds(entry)})
		}
	}
	return cues
}

func firstOf(m map[string]interface{}, keys ...string) interface{} {
	for _, key := range keys {
		if v, ok := m[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func normalizePageFollow(pf rawPageFollow) model.PageFollow {
	out := model.PageFollow{
		MediaOffsetSec: pf.MediaOffsetSec,
		PDFStartPage:   pf.PDFStartPage,
		PDFDelta:       pf.PDFDelta,
	}
	for _, row := range pf.PageMap {
		out.PageMap = append(out.PageMap, model.PageMapEntry{
			At:   model.CueSeconds(row.At),
			Page: row.Page,
		})
	}
	// pageMap invariant: ascending by timestamp
	sort.SliceStable(out.PageMap, func(i, j int) bool {
		return out.PageMap[i].At < out.PageMap[j].At
	})
	return out
}
