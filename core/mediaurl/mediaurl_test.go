package mediaurl_test

import (
	"strings"
	"testing"

	"Praetorius/core/mediaurl"
)

func TestNormalizeAudio(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "drive share link",
			in:   "https://drive.google.com/file/d/XYZ123/view?usp=sharing",
			want: "https://drive.google.com/uc?export=download&id=XYZ123",
		},
		{
			name: "docs host",
			in:   "https://docs.google.com/file/d/AB-9_c/view",
			want: "https://drive.google.com/uc?export=download&id=AB-9_c",
		},
		{
			name: "plain url passes through",
			in:   "https://cdn.example.com/audio/nocturne.mp3",
			want: "https://cdn.example.com/audio/nocturne.mp3",
		},
		{name: "empty", in: "", want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := mediaurl.NormalizeAudio(tc.in); got != tc.want {
				t.Fatalf("NormalizeAudio(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizePDF(t *testing.T) {
	in := "https://drive.google.com/file/d/XYZ123/view?usp=sharing"
	want := "https://drive.google.com/file/d/XYZ123/view?usp=drivesdk"
	if got := mediaurl.NormalizePDF(in); got != want {
		t.Fatalf("NormalizePDF = %q, want %q", got, want)
	}
	passthrough := "https://example.com/scores/nocturne.pdf"
	if got := mediaurl.NormalizePDF(passthrough); got != passthrough {
		t.Fatalf("non-Drive URL should pass through, got %q", got)
	}
}

func TestViewerURL(t *testing.T) {
	got := mediaurl.ViewerURL("https://drive.google.com/file/d/XYZ123/view?usp=drivesdk")
	if !strings.HasPrefix(got, "https://mozilla.github.io/pdf.js/web/viewer.html?file=") {
		t.Fatalf("unexpected viewer base: %q", got)
	}
	if !strings.Contains(got, "https%3A%2F%2Fdrive.google.com%2Fuc%3Fexport%3Ddownload%26id%3DXYZ123") {
		t.Errorf("file parameter not the encoded direct-download form: %q", got)
	}
	if !strings.HasSuffix(got, "#page=1&zoom=page-width&toolbar=0&sidebar=0") {
		t.Errorf("missing default fragment: %q", got)
	}
}

func TestRewriteViewerPage(t *testing.T) {
	frame := mediaurl.ViewerURL("https://example.com/scores/nocturne.pdf")

	rewritten, changed, err := mediaurl.RewriteViewerPage(frame, 3)
	if err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}
	if !changed {
		t.Fatal("page 1 -> 3 should change the URL")
	}
	if !strings.Contains(rewritten, "page=3") {
		t.Errorf("rewritten URL missing page=3: %q", rewritten)
	}
	if !strings.Contains(rewritten, "zoom=page-width") || !strings.Contains(rewritten, "sidebar=0") {
		t.Errorf("rewritten URL lost default params: %q", rewritten)
	}

	// Same page again is a no-op; avoids redundant frame reloads.
	again, changed, err := mediaurl.RewriteViewerPage(rewritten, 3)
	if err != nil {
		t.Fatalf("second rewrite failed: %v", err)
	}
	if changed || again != rewritten {
		t.Fatal("rewrite to the current page should be a no-op")
	}
}

func TestRewriteViewerPageSkipsNonViewerFrames(t *testing.T) {
	for _, frame := range []string{"", "https://example.com/other.html#page=1"} {
		got, changed, err := mediaurl.RewriteViewerPage(frame, 5)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", frame, err)
		}
		if changed || got != frame {
			t.Fatalf("non-viewer frame %q should be untouched", frame)
		}
	}
}
