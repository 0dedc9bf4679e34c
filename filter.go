// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/uepak

package uepak

import (
	"fmt"
	"strings"

	"github.com/woozymasta/pathrules"
)

// extractMatcher holds compiled include/exclude rules for entry selection.
type extractMatcher struct {
	matcher *pathrules.Matcher
}

// newExtractMatcher compiles entry selection rules; nil means select everything.
func newExtractMatcher(rules []pathrules.Rule, opts pathrules.MatcherOptions) (*extractMatcher, error) {
	rules = normalizeCompressRules(rules)
	if len(rules) == 0 {
		return nil, nil
	}

	matcher, err := pathrules.NewMatcher(rules, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: compile include rules: %w", ErrInvalidCompressPattern, err)
	}

	return &extractMatcher{matcher: matcher}, nil
}

// Match reports whether path passes the selection rules.
func (m *extractMatcher) Match(path string) bool {
	if m == nil || m.matcher == nil {
		return true
	}

	candidate := strings.TrimPrefix(NormalizePath(path), "/")
	if candidate == "" {
		return false
	}

	return m.matcher.Included(candidate, false)
}

// FilterEntriesByPrefix keeps entries under prefix (or the exact entry when
// prefix names a file). An empty prefix keeps everything.
func FilterEntriesByPrefix(entries []EntryInfo, prefix string) []EntryInfo {
	prefix = strings.TrimPrefix(NormalizePath(prefix), "/")
	if prefix == "" {
		return entries
	}

	normalizedPrefix := prefix + "/"
	out := make([]EntryInfo, 0, len(entries))
	for _, entry := range entries {
		entryPath := strings.TrimPrefix(NormalizePath(entry.Path), "/")
		if entryPath == prefix || strings.HasPrefix(entryPath, normalizedPrefix) {
			out = append(out, entry)
		}
	}

	return out
}
