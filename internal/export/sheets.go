package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/flowwijs/elektra-scraper/internal/models"
)

// Rows per append request; larger batches hit the Sheets request size limits.
const sheetsBatchSize = 25

// SheetsSink appends products to tabs of an existing Google spreadsheet.
type SheetsSink struct {
	svc           *sheets.Service
	spreadsheetID string
	batchDelay    time.Duration
	logger        *slog.Logger
}

// NewSheetsSink authenticates with a service-account credentials file.
func NewSheetsSink(ctx context.Context, credentialsFile, spreadsheetID string, logger *slog.Logger) (*SheetsSink, error) {
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}
	return NewSheetsSinkWithService(svc, spreadsheetID, logger), nil
}

func NewSheetsSinkWithService(svc *sheets.Service, spreadsheetID string, logger *slog.Logger) *SheetsSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SheetsSink{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		batchDelay:    500 * time.Millisecond,
		logger:        logger.With("component", "sheets"),
	}
}

func (s *SheetsSink) SpreadsheetURL() string {
	return "https://docs.google.com/spreadsheets/d/" + s.spreadsheetID + "/edit"
}

func (s *SheetsSink) Write(ctx context.Context, products []*models.Product, sourceURL string) error {
	_, err := s.Export(ctx, products, sourceURL)
	return err
}

func (s *SheetsSink) Export(ctx context.Context, products []*models.Product, sourceURL string) (*Result, error) {
	groups, err := groupsOrErr(products, sourceURL)
	if err != nil {
		return nil, err
	}

	existing, err := s.sheetTitles(ctx)
	if err != nil {
		return nil, err
	}

	for _, g := range groups {
		if !existing[g.Sheet] {
			if err := s.addSheet(ctx, g.Sheet); err != nil {
				return nil, err
			}
			existing[g.Sheet] = true
		}
		if err := s.ensureHeaders(ctx, g.Sheet); err != nil {
			return nil, err
		}
		if err := s.appendRows(ctx, g); err != nil {
			return nil, err
		}
	}

	result := newResult(s.SpreadsheetURL(), groups)
	s.logger.Info("export.sheets.ok",
		"spreadsheet_id", s.spreadsheetID,
		"rows", result.Rows,
		"sheets", len(groups))
	return result, nil
}

func (s *SheetsSink) sheetTitles(ctx context.Context) (map[string]bool, error) {
	ss, err := s.svc.Spreadsheets.Get(s.spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("sheets get %s: %w", s.spreadsheetID, err)
	}
	titles := make(map[string]bool, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			titles[sh.Properties.Title] = true
		}
	}
	return titles, nil
}

func (s *SheetsSink) addSheet(ctx context.Context, title string) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: title},
			},
		}},
	}
	if _, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("sheets add %s: %w", title, err)
	}
	s.logger.Info("sheet created", "sheet", title)
	return nil
}

func (s *SheetsSink) ensureHeaders(ctx context.Context, sheet string) error {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, a1(sheet, "1:1")).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets read headers %s: %w", sheet, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}

	headers := HeadersFor(sheet)
	row := make([]any, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	_, err = s.svc.Spreadsheets.Values.Update(s.spreadsheetID, a1(sheet, "A1"), &sheets.ValueRange{
		Values: [][]any{row},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets write headers %s: %w", sheet, err)
	}
	return nil
}

func (s *SheetsSink) appendRows(ctx context.Context, g SheetRows) error {
	for i := 0; i < len(g.Rows); i += sheetsBatchSize {
		end := min(i+sheetsBatchSize, len(g.Rows))
		_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, a1(g.Sheet, "A1"), &sheets.ValueRange{
			Values: g.Rows[i:end],
		}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("sheets append %s rows %d-%d: %w", g.Sheet, i+1, end, err)
		}

		if end < len(g.Rows) && s.batchDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.batchDelay):
			}
		}
	}
	return nil
}

func a1(sheet, cells string) string {
	return "'" + sheet + "'!" + cells
}
