package wallconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	file := filepath.Join(dir, "wallwatch.yaml")
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatalf("write profile file: %v", err)
	}
	return file
}

const validProfile = `
aspect_ratio_tolerance: 0.05
max_downloads: 4
update_interval: 600000
sources:
  subreddits:
    - wallpapers
    - widescreenwallpaper
  multis:
    landscapes:
      user: naturefan
      multi: scenic
targets:
  desktop:
    path: /data/walls/desktop
    allow_nsfw: false
    size:
      width: 3440
      height: 1440
    sources: [wallpapers, landscapes]
  laptop:
    path: /data/walls/laptop
    allow_nsfw: true
    aspect_ratio_tolerance: 0.02
    size:
      width: 1920
      height: 1080
    sources: [widescreenwallpaper, landscapes]
`

func TestLoadValidProfile(t *testing.T) {
	profile, err := Load(writeProfile(t, validProfile))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if profile.MaxDownloads != 4 {
		t.Fatalf("MaxDownloads = %d", profile.MaxDownloads)
	}
	if profile.UpdateInterval != 10*time.Minute {
		t.Fatalf("UpdateInterval = %v", profile.UpdateInterval)
	}

	sources := profile.Sources()
	if len(sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(sources))
	}
	multi, ok := profile.SourceByName("landscapes")
	if !ok || multi.Kind != SourceKindMulti {
		t.Fatalf("landscapes should be a multi source: %#v", multi)
	}
	if multi.User != "naturefan" || multi.Feed != "scenic" {
		t.Fatalf("unexpected multi fields: %#v", multi)
	}

	targets := profile.Targets()
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(targets))
	}
	// Sorted-name order.
	if targets[0].Name != "desktop" || targets[1].Name != "laptop" {
		t.Fatalf("unexpected target order: %s, %s", targets[0].Name, targets[1].Name)
	}
	if targets[0].Tolerance != 0.05 {
		t.Fatalf("desktop should inherit global tolerance, got %v", targets[0].Tolerance)
	}
	if targets[1].Tolerance != 0.02 {
		t.Fatalf("laptop should override tolerance, got %v", targets[1].Tolerance)
	}
	if targets[1].Width != 1920 || targets[1].Height != 1080 {
		t.Fatalf("unexpected laptop size: %dx%d", targets[1].Width, targets[1].Height)
	}
}

func TestSubscribedSourcesDeduplicated(t *testing.T) {
	profile, err := Load(writeProfile(t, validProfile))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	subscribed := profile.SubscribedSources()
	if len(subscribed) != 3 {
		t.Fatalf("expected 3 distinct subscribed sources, got %d", len(subscribed))
	}
	// desktop sorts first, so its subscription order leads.
	if subscribed[0].Name != "wallpapers" || subscribed[1].Name != "landscapes" {
		t.Fatalf("unexpected subscription order: %s, %s", subscribed[0].Name, subscribed[1].Name)
	}
}

func TestLoadRejectsInvalidProfiles(t *testing.T) {
	cases := []struct {
		name    string
		content string
		errPart string
	}{
		{
			name: "unknown source reference",
			content: `
aspect_ratio_tolerance: 0.05
max_downloads: 2
update_interval: 60000
sources:
  subreddits: [wallpapers]
targets:
  desktop:
    path: /data/desktop
    size: {width: 1920, height: 1080}
    sources: [wallpapers, nosuchsource]
`,
			errPart: "unknown source",
		},
		{
			name: "orphan source",
			content: `
aspect_ratio_tolerance: 0.05
max_downloads: 2
update_interval: 60000
sources:
  subreddits: [wallpapers, unusedsub]
targets:
  desktop:
    path: /data/desktop
    size: {width: 1920, height: 1080}
    sources: [wallpapers]
`,
			errPart: "never used",
		},
		{
			name: "zero width",
			content: `
aspect_ratio_tolerance: 0.05
max_downloads: 2
update_interval: 60000
sources:
  subreddits: [wallpapers]
targets:
  desktop:
    path: /data/desktop
    size: {width: 0, height: 1080}
    sources: [wallpapers]
`,
			errPart: "size must be positive",
		},
		{
			name: "tolerance out of range",
			content: `
aspect_ratio_tolerance: 1.0
max_downloads: 2
update_interval: 60000
sources:
  subreddits: [wallpapers]
targets:
  desktop:
    path: /data/desktop
    size: {width: 1920, height: 1080}
    sources: [wallpapers]
`,
			errPart: "out of range",
		},
		{
			name: "non-positive interval",
			content: `
aspect_ratio_tolerance: 0.05
max_downloads: 2
update_interval: 0
sources:
  subreddits: [wallpapers]
targets:
  desktop:
    path: /data/desktop
    size: {width: 1920, height: 1080}
    sources: [wallpapers]
`,
			errPart: "update_interval",
		},
		{
			name: "non-positive max downloads",
			content: `
aspect_ratio_tolerance: 0.05
max_downloads: 0
update_interval: 60000
sources:
  subreddits: [wallpapers]
targets:
  desktop:
    path: /data/desktop
    size: {width: 1920, height: 1080}
    sources: [wallpapers]
`,
			errPart: "max_downloads",
		},
		{
			name: "multi missing user",
			content: `
aspect_ratio_tolerance: 0.05
max_downloads: 2
update_interval: 60000
sources:
  multis:
    scenic:
      multi: landscapes
targets:
  desktop:
    path: /data/desktop
    size: {width: 1920, height: 1080}
    sources: [scenic]
`,
			errPart: "requires user and multi",
		},
		{
			name: "no sources",
			content: `
aspect_ratio_tolerance: 0.05
max_downloads: 2
update_interval: 60000
targets:
  desktop:
    path: /data/desktop
    size: {width: 1920, height: 1080}
    sources: [wallpapers]
`,
			errPart: "no sources",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeProfile(t, tc.content))
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tc.errPart)
			}
			if !strings.Contains(err.Error(), tc.errPart) {
				t.Fatalf("error %q does not mention %q", err, tc.errPart)
			}
		})
	}
}

func TestLoadDuplicateSourceName(t *testing.T) {
	content := `
aspect_ratio_tolerance: 0.05
max_downloads: 2
update_interval: 60000
sources:
  subreddits: [wallpapers]
  multis:
    wallpapers:
      user: someone
      multi: walls
targets:
  desktop:
    path: /data/desktop
    size: {width: 1920, height: 1080}
    sources: [wallpapers]
`
	if _, err := Load(writeProfile(t, content)); err == nil {
		t.Fatalf("expected duplicate source error, got nil")
	}
}

func TestLoadMalformedYAMLReportsDecodeError(t *testing.T) {
	content := `
sources:
  subreddits: [wallpapers
`
	_, err := Load(writeProfile(t, content))
	if err == nil {
		t.Fatalf("expected decode error, got nil")
	}
	// The underlying decoder error must survive, not a generic format message.
	if !strings.Contains(err.Error(), "yaml") {
		t.Fatalf("decode error lost its cause: %v", err)
	}
}
