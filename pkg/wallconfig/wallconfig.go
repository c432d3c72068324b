package wallconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Package wallconfig loads and validates the watch profile: the sources to
// poll, the targets to fill, and the global matching/download settings.

// SourceKind discriminates the supported feed kinds.
type SourceKind string

const (
	SourceKindSubreddit SourceKind = "subreddit"
	SourceKindMulti     SourceKind = "multi"
)

// Source is a named feed of candidate posts.
type Source struct {
	Name string
	Kind SourceKind

	// Multi fields, set only when Kind == SourceKindMulti.
	User string
	Feed string
}

// Target is a named output profile with its own directory, geometry, and
// content policy.
type Target struct {
	Name      string
	Path      string
	AllowNSFW bool
	Width     int
	Height    int
	Tolerance float64
	Sources   []string
}

// Profile is the validated in-memory watch configuration.
type Profile struct {
	AspectRatioTolerance float64
	MaxDownloads         int
	UpdateInterval       time.Duration

	sources    []Source
	sourcesIdx map[string]Source
	targets    []Target
}

// profileFile mirrors the on-disk document.
type profileFile struct {
	AspectRatioTolerance float64               `json:"aspect_ratio_tolerance" yaml:"aspect_ratio_tolerance"`
	MaxDownloads         int                   `json:"max_downloads" yaml:"max_downloads"`
	UpdateIntervalMs     int64                 `json:"update_interval" yaml:"update_interval"`
	Sources              sourcesFile           `json:"sources" yaml:"sources"`
	Targets              map[string]targetFile `json:"targets" yaml:"targets"`
}

type sourcesFile struct {
	Subreddits []string             `json:"subreddits" yaml:"subreddits"`
	Multis     map[string]multiFile `json:"multis" yaml:"multis"`
}

type multiFile struct {
	User string `json:"user" yaml:"user"`
	Feed string `json:"multi" yaml:"multi"`
}

type targetFile struct {
	Path      string   `json:"path" yaml:"path"`
	AllowNSFW bool     `json:"allow_nsfw" yaml:"allow_nsfw"`
	Size      sizeFile `json:"size" yaml:"size"`
	Tolerance *float64 `json:"aspect_ratio_tolerance" yaml:"aspect_ratio_tolerance"`
	Sources   []string `json:"sources" yaml:"sources"`
}

type sizeFile struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Load reads and validates the watch profile from a YAML/JSON file.
func Load(path string) (*Profile, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("profile file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open profile file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read profile file: %w", err)
	}

	doc, err := parseProfile(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	return buildProfile(doc)
}

func parseProfile(data []byte, ext string) (profileFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	var lastErr error
	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var doc profileFile
		if err := d.fn(data, &doc); err != nil {
			lastErr = fmt.Errorf("parse profile as %s: %w", d.name, err)
			continue
		}
		return doc, nil
	}

	if lastErr != nil {
		return profileFile{}, lastErr
	}
	return profileFile{}, errors.New("profile file format not recognized (expected YAML or JSON)")
}

func buildProfile(doc profileFile) (*Profile, error) {
	if doc.AspectRatioTolerance < 0 || doc.AspectRatioTolerance >= 1 {
		return nil, fmt.Errorf("aspect_ratio_tolerance %v out of range [0, 1)", doc.AspectRatioTolerance)
	}
	if doc.MaxDownloads <= 0 {
		return nil, fmt.Errorf("max_downloads must be positive, got %d", doc.MaxDownloads)
	}
	if doc.UpdateIntervalMs <= 0 {
		return nil, fmt.Errorf("update_interval must be positive milliseconds, got %d", doc.UpdateIntervalMs)
	}

	sources, idx, err := buildSources(doc.Sources)
	if err != nil {
		return nil, err
	}

	targets, err := buildTargets(doc, idx)
	if err != nil {
		return nil, err
	}

	if err := checkOrphanSources(sources, targets); err != nil {
		return nil, err
	}

	return &Profile{
		AspectRatioTolerance: doc.AspectRatioTolerance,
		MaxDownloads:         doc.MaxDownloads,
		UpdateInterval:       time.Duration(doc.UpdateIntervalMs) * time.Millisecond,
		sources:              sources,
		sourcesIdx:           idx,
		targets:              targets,
	}, nil
}

func buildSources(doc sourcesFile) ([]Source, map[string]Source, error) {
	var sources []Source

	for i, name := range doc.Subreddits {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, nil, fmt.Errorf("sources.subreddits[%d]: name is empty", i)
		}
		sources = append(sources, Source{Name: name, Kind: SourceKindSubreddit})
	}

	multiNames := make([]string, 0, len(doc.Multis))
	for name := range doc.Multis {
		multiNames = append(multiNames, name)
	}
	sort.Strings(multiNames)

	for _, name := range multiNames {
		m := doc.Multis[name]
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			return nil, nil, errors.New("sources.multis: name is empty")
		}
		user := strings.TrimSpace(m.User)
		feed := strings.TrimSpace(m.Feed)
		if user == "" || feed == "" {
			return nil, nil, fmt.Errorf("multi source %q requires user and multi fields", trimmed)
		}
		sources = append(sources, Source{Name: trimmed, Kind: SourceKindMulti, User: user, Feed: feed})
	}

	if len(sources) == 0 {
		return nil, nil, errors.New("no sources found in the profile")
	}

	idx := make(map[string]Source, len(sources))
	for _, src := range sources {
		if _, exists := idx[src.Name]; exists {
			return nil, nil, fmt.Errorf("duplicate source name %q", src.Name)
		}
		idx[src.Name] = src
	}
	return sources, idx, nil
}

func buildTargets(doc profileFile, sourcesIdx map[string]Source) ([]Target, error) {
	if len(doc.Targets) == 0 {
		return nil, errors.New("no targets found in the profile")
	}

	names := make([]string, 0, len(doc.Targets))
	for name := range doc.Targets {
		names = append(names, name)
	}
	sort.Strings(names)

	targets := make([]Target, 0, len(names))
	for _, name := range names {
		raw := doc.Targets[name]
		target, err := buildTarget(name, raw, doc.AspectRatioTolerance, sourcesIdx)
		if err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}
	return targets, nil
}

func buildTarget(name string, raw targetFile, defaultTolerance float64, sourcesIdx map[string]Source) (Target, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Target{}, errors.New("target name is empty")
	}
	if strings.TrimSpace(raw.Path) == "" {
		return Target{}, fmt.Errorf("target %q: path is required", name)
	}
	if raw.Size.Width <= 0 || raw.Size.Height <= 0 {
		return Target{}, fmt.Errorf("target %q: size must be positive, got %dx%d", name, raw.Size.Width, raw.Size.Height)
	}

	tolerance := defaultTolerance
	if raw.Tolerance != nil {
		tolerance = *raw.Tolerance
		if tolerance < 0 || tolerance >= 1 {
			return Target{}, fmt.Errorf("target %q: aspect_ratio_tolerance %v out of range [0, 1)", name, tolerance)
		}
	}

	if len(raw.Sources) == 0 {
		return Target{}, fmt.Errorf("target %q: at least one source is required", name)
	}
	subscribed := make([]string, 0, len(raw.Sources))
	seen := make(map[string]bool, len(raw.Sources))
	for _, srcName := range raw.Sources {
		srcName = strings.TrimSpace(srcName)
		if srcName == "" {
			return Target{}, fmt.Errorf("target %q: empty source reference", name)
		}
		if _, ok := sourcesIdx[srcName]; !ok {
			return Target{}, fmt.Errorf("target %q references unknown source %q", name, srcName)
		}
		if seen[srcName] {
			return Target{}, fmt.Errorf("target %q subscribes to source %q twice", name, srcName)
		}
		seen[srcName] = true
		subscribed = append(subscribed, srcName)
	}

	return Target{
		Name:      name,
		Path:      strings.TrimSpace(raw.Path),
		AllowNSFW: raw.AllowNSFW,
		Width:     raw.Size.Width,
		Height:    raw.Size.Height,
		Tolerance: tolerance,
		Sources:   subscribed,
	}, nil
}

// checkOrphanSources rejects profiles declaring sources no target subscribes to.
func checkOrphanSources(sources []Source, targets []Target) error {
	unused := make(map[string]bool, len(sources))
	for _, src := range sources {
		unused[src.Name] = true
	}
	for _, target := range targets {
		for _, name := range target.Sources {
			delete(unused, name)
		}
	}
	if len(unused) == 0 {
		return nil
	}
	names := make([]string, 0, len(unused))
	for name := range unused {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Errorf("source(s) %s are never used by any target", strings.Join(names, ", "))
}

// Sources returns all declared sources in load order.
func (p *Profile) Sources() []Source {
	if p == nil {
		return nil
	}
	out := make([]Source, len(p.sources))
	copy(out, p.sources)
	return out
}

// SourceByName returns the source entry for the given name.
func (p *Profile) SourceByName(name string) (Source, bool) {
	if p == nil || p.sourcesIdx == nil {
		return Source{}, false
	}
	src, ok := p.sourcesIdx[strings.TrimSpace(name)]
	return src, ok
}

// Targets returns all targets in deterministic (sorted-name) order.
func (p *Profile) Targets() []Target {
	if p == nil {
		return nil
	}
	out := make([]Target, len(p.targets))
	copy(out, p.targets)
	return out
}

// SubscribedSources returns the distinct sources referenced by any target, in
// first-subscription order across the sorted target list. These are the
// sources the aggregator fetches once per cycle.
func (p *Profile) SubscribedSources() []Source {
	if p == nil {
		return nil
	}
	var out []Source
	seen := make(map[string]bool)
	for _, target := range p.targets {
		for _, name := range target.Sources {
			if seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, p.sourcesIdx[name])
		}
	}
	return out
}
