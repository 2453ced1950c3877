// Package xlsx renders collected search feedback as a spreadsheet for offline review.
package xlsx

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/research-search/internal/core/domain"
)

const (
	SearchesSheet = "searches"
	ItemsSheet    = "item_feedback"
)

var (
	searchesHeader = []any{"feedback_id", "user_id", "query", "filters", "result_count", "global_feedback", "global_reason", "item_feedback_count", "created_at", "updated_at"}
	itemsHeader    = []any{"feedback_id", "query", "item_id", "rank", "title", "label", "reason", "fused_score"}
)

// WriteFeedback writes one row per search and one row per item judgement.
func WriteFeedback(w io.Writer, records []domain.FeedbackRecord) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", SearchesSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(ItemsSheet); err != nil {
		return fmt.Errorf("create items sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	for sheet, header := range map[string][]any{SearchesSheet: searchesHeader, ItemsSheet: itemsHeader} {
		if err := writeRow(f, sheet, 1, header); err != nil {
			return err
		}
		last, _ := excelize.CoordinatesToCellName(len(header), 1)
		if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
			return fmt.Errorf("style %s header: %w", sheet, err)
		}
	}
	_ = f.SetColWidth(SearchesSheet, "C", "C", 48)
	_ = f.SetColWidth(ItemsSheet, "E", "E", 64)

	itemRow := 2
	for i, record := range records {
		filters, err := json.Marshal(record.Filters)
		if err != nil {
			return fmt.Errorf("marshal filters for %s: %w", record.ID, err)
		}
		row := []any{
			record.ID,
			record.UserID,
			record.Query,
			string(filters),
			len(record.Results),
			labelCell(record.GlobalFeedback),
			stringCell(record.GlobalReason),
			len(record.ItemFeedback),
			record.CreatedAt.UTC().Format(time.RFC3339),
			record.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := writeRow(f, SearchesSheet, i+2, row); err != nil {
			return err
		}

		snapshots := make(map[domain.ItemID]domain.ResultSnapshot, len(record.Results))
		for _, r := range record.Results {
			snapshots[r.ID] = r
		}
		for _, entry := range record.ItemFeedback {
			snap := snapshots[entry.ID]
			label := entry.Label
			row := []any{
				record.ID,
				record.Query,
				int64(entry.ID),
				rankCell(snap),
				snap.Title,
				labelCell(&label),
				stringCell(entry.Reason),
				snap.FusedScore,
			}
			if err := writeRow(f, ItemsSheet, itemRow, row); err != nil {
				return err
			}
			itemRow++
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func labelCell(label *domain.Label) string {
	if label == nil {
		return ""
	}
	return label.String()
}

func stringCell(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func rankCell(snap domain.ResultSnapshot) any {
	if snap.Rank == 0 {
		return ""
	}
	return snap.Rank
}
