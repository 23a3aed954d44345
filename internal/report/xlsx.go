// Package report renders the aggregate as a spreadsheet.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/cam3ron2/org-dashboard/internal/activity"
	"github.com/cam3ron2/org-dashboard/internal/window"
	"github.com/xuri/excelize/v2"
)

const (
	// ContributorsSheet lists contributors with in-window counts.
	ContributorsSheet = "Contributors"
	// RepositoriesSheet lists repositories with in-window counts.
	RepositoriesSheet = "Repositories"
)

var (
	contributorHeader = []any{"Login", "Commits", "Pull Requests", "Contributions", "Repositories"}
	repositoryHeader  = []any{"Repository", "Commits", "Pull Requests", "Issues", "Contributors"}
)

// WriteXLSX writes a workbook with a contributors sheet and a repositories
// sheet for agg narrowed to w. Bounded windows omit rows with no activity.
func WriteXLSX(out io.Writer, agg *activity.OrgAggregate, w window.Window) (err error) {
	if agg == nil {
		return fmt.Errorf("aggregate is required")
	}

	book := excelize.NewFile()
	defer func() {
		if closeErr := book.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close workbook: %w", closeErr)
		}
	}()

	if err := book.SetSheetName("Sheet1", ContributorsSheet); err != nil {
		return fmt.Errorf("rename default sheet: %w", err)
	}
	if _, err := book.NewSheet(RepositoriesSheet); err != nil {
		return fmt.Errorf("create %s sheet: %w", RepositoriesSheet, err)
	}
	headerStyle, err := book.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := writeRows(book, ContributorsSheet, headerStyle, contributorHeader, contributorRows(agg, w)); err != nil {
		return err
	}
	if err := writeRows(book, RepositoriesSheet, headerStyle, repositoryHeader, repositoryRows(agg, w)); err != nil {
		return err
	}

	if err := book.Write(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(book *excelize.File, sheet string, headerStyle int, header []any, rows [][]any) error {
	if err := book.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	lastHeader, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := book.SetCellStyle(sheet, "A1", lastHeader, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	if err := book.SetColWidth(sheet, "A", "A", 28); err != nil {
		return fmt.Errorf("size %s columns: %w", sheet, err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := book.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

func contributorRows(agg *activity.OrgAggregate, w window.Window) [][]any {
	type row struct {
		login   string
		metrics window.FilteredMetrics
	}
	rows := make([]row, 0, len(agg.Contributors))
	for _, contributor := range agg.Contributors {
		metrics := window.Metrics(contributor, w)
		if w.Bounded() && metrics.Contributions == 0 {
			continue
		}
		rows = append(rows, row{login: contributor.Login, metrics: metrics})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].metrics.Contributions != rows[j].metrics.Contributions {
			return rows[i].metrics.Contributions > rows[j].metrics.Contributions
		}
		return rows[i].login < rows[j].login
	})

	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, []any{r.login, r.metrics.Commits, r.metrics.PullRequests, r.metrics.Contributions, r.metrics.Repositories})
	}
	return out
}

func repositoryRows(agg *activity.OrgAggregate, w window.Window) [][]any {
	names := make([]string, 0, len(agg.PerRepository))
	for name := range agg.PerRepository {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([][]any, 0, len(names))
	for _, name := range names {
		rollup := agg.PerRepository[name]
		if rollup == nil {
			continue
		}
		narrowed := window.Rollup(*rollup, w)
		if w.Bounded() && narrowed.Commits+narrowed.PullRequests+narrowed.Issues == 0 {
			continue
		}
		out = append(out, []any{name, narrowed.Commits, narrowed.PullRequests, narrowed.Issues, len(narrowed.Contributors)})
	}
	return out
}
