// Package sheets holds the port for exporting the month overview to a
// spreadsheet, with Google Sheets and in-memory adapters.
package sheets

import (
	"context"

	"ledgerly/internal/core"
)

// Ports for outbound adapters.
type (
	// OverviewExporter replaces the exported month summaries with the given
	// ones, newest month first.
	OverviewExporter interface {
		ExportOverview(ctx context.Context, months []core.MonthSummary) error
	}
)
