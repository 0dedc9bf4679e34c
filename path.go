// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/uepak

package uepak

import (
	"fmt"
	"path"
	"strings"
)

// NormalizePath converts an archive/internal path to normalized slash-separated
// form. It trims spaces, accepts both "/" and "\", removes "./" and duplicate
// separators, and keeps a single leading "/" when the input had one.
func NormalizePath(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.ReplaceAll(raw, `\`, "/")
	raw = strings.TrimPrefix(raw, "./")

	if raw == "" {
		return ""
	}

	cleaned := path.Clean(raw)
	if cleaned == "." || cleaned == "/" {
		return ""
	}

	return cleaned
}

// normalizeEntryPath converts an input path to canonical archive form.
func normalizeEntryPath(raw string) (string, error) {
	normalized := NormalizePath(raw)
	if normalized == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidEntryPath, raw)
	}

	return normalized, nil
}

// splitPathChild splits an index path into its directory prefix and final
// element. The prefix keeps its trailing separator; paths without a separator
// live under the "/" root directory.
func splitPathChild(p string) (dir, child string) {
	p = strings.TrimSuffix(p, "/")

	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return "/", p
	}

	return p[:i+1], p[i+1:]
}

// joinIndexPath reassembles a full path from a directory index pair.
// The "/" root directory contributes no prefix.
func joinIndexPath(dir, child string) string {
	if dir == "/" {
		return child
	}

	return dir + child
}
