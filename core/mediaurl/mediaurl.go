// Package mediaurl normalizes audio and score URLs and speaks the PDF
// viewer's URL-parameter protocol. Google Drive share links are the only
// rewritten family; every other URL passes through untouched.
package mediaurl

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const viewerBase = "https://mozilla.github.io/pdf.js/web/viewer.html"

var driveFileRe = regexp.MustCompile(`https?://(?:drive|docs)\.google\.com/file/d/([^/]+)/`)

// NormalizeAudio rewrites a Drive share link to its direct-download
// form. Empty and non-Drive inputs pass through unchanged.
func NormalizeAudio(raw string) string {
	if raw == "" {
		return ""
	}
	if m := driveFileRe.FindStringSubmatch(raw); m != nil {
		return "https://drive.google.com/uc?export=download&id=" + m[1]
	}
	return raw
}

// NormalizePDF rewrites a Drive share link to its canonical view form.
func NormalizePDF(raw string) string {
	if raw == "" {
		return ""
	}
	if m := driveFileRe.FindStringSubmatch(raw); m != nil {
		return fmt.Sprintf("https://drive.google.com/file/d/%s/view?usp=drivesdk", m[1])
	}
	return raw
}

// ViewerURL builds the embedded viewer URL for a score: the pdf.js
// viewer with the file parameter plus the console's fixed page one,
// page-width zoom, no toolbar, no sidebar fragment.
func ViewerURL(raw string) string {
	file := raw
	if m := driveFileRe.FindStringSubmatch(raw); m != nil {
		file = "https://drive.google.com/uc?export=download&id=" + m[1]
	}
	return viewerBase + "?file=" + url.QueryEscape(file) + "#page=1&zoom=page-width&toolbar=0&sidebar=0"
}

// RewriteViewerPage rewrites the page parameter of a viewer frame URL,
// ensuring the default zoom and sidebar parameters stay present. It
// reports whether the URL changed; a frame not showing the viewer, or
// already on the requested page, is left alone. Only a malformed frame
// URL yields an error.
func RewriteViewerPage(frameURL string, page int) (string, bool, error) {
	if frameURL == "" || !strings.Contains(strings.ToLower(frameURL), "/viewer.html") {
		return frameURL, false, nil
	}
	u, err := url.Parse(frameURL)
	if err != nil {
		return frameURL, false, fmt.Errorf("parse viewer url: %w", err)
	}
	hash, err := url.ParseQuery(u.Fragment)
	if err != nil {
		return frameURL, false, fmt.Errorf("parse viewer fragment: %w", err)
	}
	current := 1
	if v := hash.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			current = n
		}
	}
	if page < 1 {
		page = 1
	}
	if current == page {
		return frameURL, false, nil
	}
	hash.Set("page", strconv.Itoa(page))
	if !hash.Has("zoom") {
		hash.Set("zoom", "page-width")
	}
	if !hash.Has("sidebar") {
		hash.Set("sidebar", "0")
	}
	u.Fragment = hash.Encode()
	return u.String(), true, nil
}
