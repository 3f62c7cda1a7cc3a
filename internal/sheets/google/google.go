package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"ledgerly/internal/core"
	ports "ledgerly/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	summarySheet  string
	categorySheet string
}

// Ensure interface conformance
var _ ports.OverviewExporter = (*Client)(nil)

// New creates an exporter writing to spreadsheetID. The summary goes to
// sheetName and the category breakdown to "<sheetName> Categories".
// Without opts, credentials come from the environment (see
// serviceAccountOption).
func New(ctx context.Context, spreadsheetID, sheetName string, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetName = strings.TrimSpace(sheetName)
	if sheetName == "" {
		sheetName = "Overview"
	}
	if len(opts) == 0 {
		opt, err := serviceAccountOption(ctx)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{opt, goption.WithScopes(gsheet.SpreadsheetsScope)}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		summarySheet:  sheetName,
		categorySheet: sheetName + " Categories",
	}, nil
}

// serviceAccountOption reads Service Account credentials from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS, in that order.
func serviceAccountOption(ctx context.Context) (goption.ClientOption, error) {
	inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.DebugContext(ctx, "Using inline service account credentials")
		return goption.WithCredentialsJSON([]byte(inline)), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.DebugContext(ctx, "Using service account credentials file", "path", file)
		return goption.WithCredentialsJSON(data), nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
}

// ExportOverview clears both sheets and writes the new rows in one batch.
func (c *Client) ExportOverview(ctx context.Context, months []core.MonthSummary) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	summaryRange := c.summarySheet + "!A:E"
	categoryRange := c.categorySheet + "!A:D"

	_, err := c.svc.Spreadsheets.Values.BatchClear(c.spreadsheetID, &gsheet.BatchClearValuesRequest{
		Ranges: []string{summaryRange, categoryRange},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", c.summarySheet, err)
	}

	_, err = c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data: []*gsheet.ValueRange{
			{Range: c.summarySheet + "!A1", Values: summaryRows(months)},
			{Range: c.categorySheet + "!A1", Values: categoryRows(months)},
		},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write %s: %w", c.summarySheet, err)
	}

	slog.InfoContext(ctx, "Exported overview to Google Sheets",
		"spreadsheet_id", c.spreadsheetID,
		"sheet", c.summarySheet,
		"months", len(months))
	return nil
}
