package sched

import (
	"context"
	"strings"

	"sheetops/internal/audit"
)

// Result is what a handler reports back to the engine. Warnings mark rows
// that were skipped without aborting the run; any warning downgrades an
// otherwise clean invocation to PartialFailure.
type Result struct {
	Counts   audit.Counts
	Warnings []string
	Detail   string
}

func (r Result) detailText() string {
	parts := make([]string, 0, 2)
	if r.Detail != "" {
		parts = append(parts, r.Detail)
	}
	if len(r.Warnings) > 0 {
		parts = append(parts, strings.Join(r.Warnings, "; "))
	}
	return strings.Join(parts, " | ")
}

// Handler is one automation routine the engine can invoke.
type Handler interface {
	Name() string
	Run(ctx context.Context) (Result, error)
}

// HandlerFunc adapts a named function to the Handler interface.
type HandlerFunc struct {
	JobName string
	Fn      func(ctx context.Context) (Result, error)
}

func (h HandlerFunc) Name() string { return h.JobName }

func (h HandlerFunc) Run(ctx context.Context) (Result, error) { return h.Fn(ctx) }
