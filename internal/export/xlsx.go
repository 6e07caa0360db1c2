package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/flowwijs/elektra-scraper/internal/models"
)

const defaultSheet = "Sheet1"

// XLSXSink appends products to a workbook on disk, one worksheet per routed
// sheet. An existing workbook keeps its rows; new rows go below them.
type XLSXSink struct {
	path   string
	logger *slog.Logger
}

func NewXLSXSink(path string, logger *slog.Logger) *XLSXSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &XLSXSink{path: path, logger: logger.With("component", "xlsx")}
}

func (s *XLSXSink) Path() string {
	return s.path
}

func (s *XLSXSink) Write(ctx context.Context, products []*models.Product, sourceURL string) error {
	_, err := s.Export(ctx, products, sourceURL)
	return err
}

// Export is Write with a per-sheet report.
func (s *XLSXSink) Export(ctx context.Context, products []*models.Product, sourceURL string) (*Result, error) {
	start := time.Now()

	groups, err := groupsOrErr(products, sourceURL)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, created, err := s.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := appendGroups(f, groups); err != nil {
		return nil, err
	}
	if created {
		// The blank default sheet is only dropped once a routed sheet exists.
		if idx, _ := f.GetSheetIndex(defaultSheet); idx != -1 && len(f.GetSheetList()) > 1 {
			if err := f.DeleteSheet(defaultSheet); err != nil {
				return nil, fmt.Errorf("xlsx delete default sheet: %w", err)
			}
		}
		if idx, _ := f.GetSheetIndex(groups[0].Sheet); idx != -1 {
			f.SetActiveSheet(idx)
		}
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("xlsx mkdir: %w", err)
		}
	}
	if err := f.SaveAs(s.path); err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	result := newResult(s.path, groups)
	s.logger.Info("export.xlsx.ok",
		"path", s.path,
		"rows", result.Rows,
		"sheets", len(groups),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

func (s *XLSXSink) open() (*excelize.File, bool, error) {
	f, err := excelize.OpenFile(s.path)
	if err == nil {
		return f, false, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return excelize.NewFile(), true, nil
	}
	return nil, false, fmt.Errorf("xlsx open %s: %w", s.path, err)
}

func appendGroups(f *excelize.File, groups []SheetRows) error {
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("xlsx style: %w", err)
	}

	for _, g := range groups {
		if idx, _ := f.GetSheetIndex(g.Sheet); idx == -1 {
			if _, err := f.NewSheet(g.Sheet); err != nil {
				return fmt.Errorf("xlsx new sheet %s: %w", g.Sheet, err)
			}
		}

		existing, err := f.GetRows(g.Sheet)
		if err != nil {
			return fmt.Errorf("xlsx read %s: %w", g.Sheet, err)
		}

		next := len(existing) + 1
		if len(existing) == 0 {
			headers := HeadersFor(g.Sheet)
			if err := f.SetSheetRow(g.Sheet, "A1", &headers); err != nil {
				return fmt.Errorf("xlsx headers %s: %w", g.Sheet, err)
			}
			_ = f.SetRowStyle(g.Sheet, 1, 1, bold)
			lastCol, _ := excelize.ColumnNumberToName(len(headers))
			_ = f.SetColWidth(g.Sheet, "A", lastCol, 18)
			next = 2
		}

		for _, row := range g.Rows {
			cell, err := excelize.CoordinatesToCellName(1, next)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(g.Sheet, cell, &row); err != nil {
				return fmt.Errorf("xlsx row %s!%s: %w", g.Sheet, cell, err)
			}
			next++
		}
	}
	return nil
}
