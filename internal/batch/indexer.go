// Package batch indexes raw control-system exports in object storage and
// merges them into per-variable series files keyed by a batch prefix.
package batch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ParseExportDate extracts the acquisition date from a raw export
// filename. Export names carry a YYYYMMDD token between underscores;
// its position varies between logger configurations, so the first
// token that parses as a date wins.
func ParseExportDate(name string) (time.Time, error) {
	base := name
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	base = strings.TrimSuffix(base, ".csv")

	for _, part := range strings.Split(base, "_") {
		if len(part) != 8 {
			continue
		}
		if t, err := time.Parse("20060102", part); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("no date token in filename %q", name)
}

// FilterByDate returns the export files whose embedded date falls within
// [start, end], inclusive on both ends. Files without a parseable date
// token are skipped.
func FilterByDate(files []string, start, end time.Time) []string {
	var filtered []string
	for _, f := range files {
		d, err := ParseExportDate(f)
		if err != nil {
			continue
		}
		if !d.Before(start) && !d.After(end) {
			filtered = append(filtered, f)
		}
	}
	return filtered
}

// Sanitize makes a variable name safe for use in an object name.
// Alphanumerics, spaces, underscores and hyphens pass through; anything
// else becomes an underscore. Trailing whitespace is stripped.
func Sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == ' ', c == '_', c == '-':
			b.WriteRune(c)
		default:
			b.WriteRune('_')
		}
	}
	return strings.TrimRight(b.String(), " \t\n")
}

// Lister lists object names under a prefix.
type Lister interface {
	List(ctx context.Context, prefix string) ([]string, error)
}

// Prefixes derives the known batch prefixes from merged series files.
// The prefix is the leading underscore token of each object name.
func Prefixes(ctx context.Context, merged Lister) ([]string, error) {
	files, err := merged.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list merged files: %w", err)
	}

	seen := make(map[string]struct{})
	for _, f := range files {
		if !strings.HasSuffix(f, ".csv") {
			continue
		}
		prefix, _, found := strings.Cut(f, "_")
		if !found || prefix == "" {
			continue
		}
		seen[prefix] = struct{}{}
	}

	prefixes := make([]string, 0, len(seen))
	for p := range seen {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)
	return prefixes, nil
}
