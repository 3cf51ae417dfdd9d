// Package privacy scrubs sensitive data from user-authored text before the
// engine stores it or sends it to any backend.
//
// Every category is matched against the input. Matches are collected as byte
// spans, overlapping spans are merged, and each merged span is replaced by the
// marker of its widest member. A replacement can open a word boundary that
// exposes a match hidden in the first pass ("123-45-6789https://u:p@h" only
// shows its SSN once the URL is gone), so the text is rescanned outside the
// markers until a pass finds nothing. Filtering is therefore idempotent:
// Filter(Filter(x)) == Filter(x).
package privacy

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrInvalidConfig is returned when a category or allowlist pattern is invalid.
var ErrInvalidConfig = errors.New("privacy: invalid config")

// Config configures a Filter.
type Config struct {
	// Enabled is the initial state of the runtime toggle.
	Enabled bool

	// Categories defaults to DefaultCategories().
	Categories []Category

	// AllowList holds patterns whose matches are never redacted.
	AllowList []string

	// SecretScan adds gitleaks detection as an extra category.
	SecretScan bool
}

// Result is the detailed outcome of Scrub.
type Result struct {
	Text   string
	Found  bool
	Counts map[string]int
}

type compiledCategory struct {
	Category
	re *regexp.Regexp
}

// span is a byte range of the original text to replace.
type span struct {
	start, end int
	category   int // index into categories, len(categories) for secrets
}

// SecretScanner finds credential strings in text.
type SecretScanner interface {
	Secrets(text string) []string
}

// Filter replaces sensitive substrings with category markers.
type Filter struct {
	enabled atomic.Bool

	categories []compiledCategory
	scanner    SecretScanner

	mu    sync.RWMutex
	allow []*regexp.Regexp
}

// New creates a Filter. A nil config uses the default categories, enabled.
func New(cfg *Config) (*Filter, error) {
	if cfg == nil {
		cfg = &Config{Enabled: true}
	}
	cats := cfg.Categories
	if len(cats) == 0 {
		cats = DefaultCategories()
	}

	f := &Filter{categories: make([]compiledCategory, 0, len(cats))}
	seen := make(map[string]bool, len(cats))
	for i, c := range cats {
		if c.ID == "" || c.Pattern == "" || c.Marker == "" {
			return nil, fmt.Errorf("%w: category %d needs id, pattern and marker", ErrInvalidConfig, i)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("%w: duplicate category %q", ErrInvalidConfig, c.ID)
		}
		seen[c.ID] = true
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: category %s: %v", ErrInvalidConfig, c.ID, err)
		}
		f.categories = append(f.categories, compiledCategory{Category: c, re: re})
	}

	if err := f.SetAllowList(cfg.AllowList); err != nil {
		return nil, err
	}

	if cfg.SecretScan {
		scanner, err := NewGitleaksScanner()
		if err != nil {
			return nil, fmt.Errorf("initialising secret scanner: %w", err)
		}
		f.scanner = scanner
	}

	f.enabled.Store(cfg.Enabled)
	return f, nil
}

// MustNew creates a Filter, panicking on error.
func MustNew(cfg *Config) *Filter {
	f, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return f
}

// SetScanner replaces the secret scanner. nil disables secret scanning.
func (f *Filter) SetScanner(s SecretScanner) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scanner = s
}

// SetEnabled toggles filtering at runtime.
func (f *Filter) SetEnabled(enabled bool) {
	f.enabled.Store(enabled)
}

// Enabled reports whether filtering is active.
func (f *Filter) Enabled() bool {
	return f.enabled.Load()
}

// SetAllowList replaces the allowlist. On error the previous list is kept.
func (f *Filter) SetAllowList(patterns []string) error {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("%w: allowlist pattern %q: %v", ErrInvalidConfig, p, err)
		}
		compiled = append(compiled, re)
	}
	f.mu.Lock()
	f.allow = compiled
	f.mu.Unlock()
	return nil
}

// Filter returns text with every sensitive match replaced and whether any
// match was found. When the filter is disabled text is returned unchanged.
func (f *Filter) Filter(text string) (string, bool) {
	r := f.Scrub(text)
	return r.Text, r.Found
}

// Scrub is Filter with per-category counts.
func (f *Filter) Scrub(text string) Result {
	if !f.Enabled() {
		return Result{Text: text, Counts: map[string]int{}}
	}
	out, counts := f.scrub(text)
	return Result{Text: out, Found: len(counts) > 0, Counts: counts}
}

// Report counts matches per category without modifying anything. It works
// whether or not the filter is enabled. Categories without matches are
// omitted.
func (f *Filter) Report(text string) map[string]int {
	_, counts := f.scrub(text)
	return counts
}

// maxPasses bounds rescanning. Each productive pass turns at least one
// unredacted byte run into a marker, and real input settles in two.
const maxPasses = 8

func (f *Filter) scrub(text string) (string, map[string]int) {
	counts := make(map[string]int)
	for pass := 0; pass < maxPasses; pass++ {
		spans := f.find(text, f.markerRanges(text))
		if len(spans) == 0 {
			break
		}
		for _, sp := range spans {
			counts[f.categoryID(sp.category)]++
		}
		text = f.apply(text, spans)
	}
	return text, counts
}

// Categories returns the configured category IDs in order.
func (f *Filter) Categories() []string {
	ids := make([]string, 0, len(f.categories)+1)
	for _, c := range f.categories {
		ids = append(ids, c.ID)
	}
	f.mu.RLock()
	if f.scanner != nil {
		ids = append(ids, CategorySecret)
	}
	f.mu.RUnlock()
	return ids
}

// find returns the accepted matches in text. Text inside markers is never
// scanned; each run between markers is scanned on its own, so a greedy
// pattern cannot reach into a marker.
func (f *Filter) find(text string, markers []span) []span {
	var spans []span
	last := 0
	for _, m := range markers {
		spans = append(spans, f.findIn(text[last:m.start], last)...)
		last = m.end
	}
	return append(spans, f.findIn(text[last:], last)...)
}

// findIn matches segment and reports spans offset into the full text.
func (f *Filter) findIn(segment string, offset int) []span {
	if strings.TrimSpace(segment) == "" {
		return nil
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	var spans []span
	for i, c := range f.categories {
		for _, m := range c.re.FindAllStringIndex(segment, -1) {
			match := segment[m[0]:m[1]]
			if f.allowed(match) {
				continue
			}
			if c.Entropy > 0 && !highEntropy(match, c.Entropy) {
				continue
			}
			spans = append(spans, span{start: offset + m[0], end: offset + m[1], category: i})
		}
	}

	if f.scanner != nil {
		for _, secret := range f.scanner.Secrets(segment) {
			if secret == "" || f.allowed(secret) {
				continue
			}
			for off := 0; ; {
				idx := strings.Index(segment[off:], secret)
				if idx < 0 {
					break
				}
				start := off + idx
				spans = append(spans, span{start: offset + start, end: offset + start + len(secret), category: len(f.categories)})
				off = start + len(secret)
			}
		}
	}
	return spans
}

// markerRanges locates the markers already present in text, in order.
func (f *Filter) markerRanges(text string) []span {
	var out []span
	seen := map[string]bool{}
	for i := 0; i <= len(f.categories); i++ {
		m := f.marker(i)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		for off := 0; ; {
			idx := strings.Index(text[off:], m)
			if idx < 0 {
				break
			}
			start := off + idx
			out = append(out, span{start: start, end: start + len(m), category: i})
			off = start + len(m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}

func (f *Filter) categoryID(category int) string {
	if category >= len(f.categories) {
		return CategorySecret
	}
	return f.categories[category].ID
}

func (f *Filter) allowed(match string) bool {
	for _, re := range f.allow {
		if re.MatchString(match) {
			return true
		}
	}
	return false
}

// apply replaces merged spans, working from the end so earlier offsets stay
// valid.
func (f *Filter) apply(text string, spans []span) string {
	if len(spans) == 0 {
		return text
	}
	merged := mergeSpans(spans)

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range merged {
		b.WriteString(text[last:m.start])
		b.WriteString(f.marker(m.category))
		last = m.end
	}
	b.WriteString(text[last:])
	return b.String()
}

func (f *Filter) marker(category int) string {
	if category >= len(f.categories) {
		return secretMarker
	}
	return f.categories[category].Marker
}

// mergeSpans sorts spans and merges overlapping ones. A merged span keeps the
// category of its widest member; ties go to the earlier category.
func mergeSpans(spans []span) []span {
	sorted := make([]span, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].start != sorted[j].start {
			return sorted[i].start < sorted[j].start
		}
		return sorted[i].end > sorted[j].end
	})

	type group struct {
		span
		widest int
	}
	var out []group
	for _, s := range sorted {
		width := s.end - s.start
		if n := len(out); n > 0 && s.start < out[n-1].end {
			g := &out[n-1]
			if s.end > g.end {
				g.end = s.end
			}
			if width > g.widest || (width == g.widest && s.category < g.category) {
				g.widest = width
				g.category = s.category
			}
			continue
		}
		out = append(out, group{span: s, widest: width})
	}

	result := make([]span, len(out))
	for i, g := range out {
		result[i] = g.span
	}
	return result
}
