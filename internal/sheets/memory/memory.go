// Package memory is an OverviewExporter that keeps every export in memory.
package memory

import (
	"context"
	"slices"
	"sync"

	"ledgerly/internal/core"
	ports "ledgerly/internal/sheets"
)

type Exporter struct {
	mu      sync.Mutex
	exports [][]core.MonthSummary
}

var _ ports.OverviewExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{}
}

func (e *Exporter) ExportOverview(_ context.Context, months []core.MonthSummary) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.exports = append(e.exports, slices.Clone(months))
	return nil
}

// Last returns the most recent export and whether there was one.
func (e *Exporter) Last() ([]core.MonthSummary, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.exports) == 0 {
		return nil, false
	}
	return slices.Clone(e.exports[len(e.exports)-1]), true
}

// Count is the number of exports received.
func (e *Exporter) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.exports)
}
