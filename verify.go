// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/uepak

package uepak

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// VerifyResult summarizes one bulk verification pass.
type VerifyResult struct {
	// Failed lists the paths whose payload failed to decode or verify.
	Failed []string `json:"failed,omitempty" yaml:"failed,omitempty"`
	// Verified is the number of entries whose content digest matched.
	Verified int `json:"verified" yaml:"verified"`
}

// VerifyAll decodes every non-deleted entry and checks its content digest,
// fanning out over maxWorkers (GOMAXPROCS when zero). Failures are collected
// per path rather than aborting the pass, so callers can report partial
// success; the returned error joins every per-path failure.
func (a *Archive) VerifyAll(ctx context.Context, maxWorkers int) (*VerifyResult, error) {
	if a == nil {
		return nil, ErrNilReader
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if maxWorkers <= 0 {
		maxWorkers = runtime.GOMAXPROCS(0)
	}

	paths := a.List()
	res := &VerifyResult{}

	var (
		mu       sync.Mutex
		failures []error
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	for _, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			if _, err := a.ReadFileContext(ctx, path); err != nil {
				mu.Lock()
				failures = append(failures, fmt.Errorf("%s: %w", path, err))
				res.Failed = append(res.Failed, path)
				mu.Unlock()

				return nil
			}

			mu.Lock()
			res.Verified++
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return res, err
	}

	sort.Strings(res.Failed)
	sort.Slice(failures, func(i, j int) bool { return failures[i].Error() < failures[j].Error() })

	return res, errors.Join(failures...)
}
