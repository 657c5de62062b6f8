package scenario

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	columnsSheet = "Levels"
	treeSheet    = "Paths"
)

// ExportXLSX writes the overview as a workbook: one sheet with a column per
// level, one with the expanded tree indented by depth.
func ExportXLSX(w io.Writer, ov Overview) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", columnsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(treeSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	title, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	if err := writeColumns(f, ov, header, title); err != nil {
		return err
	}
	if err := writeTree(f, ov, header); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeColumns(f *excelize.File, ov Overview, header, title int) error {
	for ci, col := range ov.Columns {
		cell, err := excelize.CoordinatesToCellName(ci+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(columnsSheet, cell, fmt.Sprintf("Level %d", col.Level)); err != nil {
			return err
		}
		if err := f.SetCellStyle(columnsSheet, cell, cell, header); err != nil {
			return err
		}

		row := 2
		for _, d := range col.Decisions {
			cell, _ := excelize.CoordinatesToCellName(ci+1, row)
			if err := f.SetCellValue(columnsSheet, cell, decisionLabel(d)); err != nil {
				return err
			}
			if err := f.SetCellStyle(columnsSheet, cell, cell, title); err != nil {
				return err
			}
			row++
			for _, c := range d.Choices {
				cell, _ := excelize.CoordinatesToCellName(ci+1, row)
				if err := f.SetCellValue(columnsSheet, cell, choiceLabel(ov, d, c)); err != nil {
					return err
				}
				row++
			}
			row++
		}

		name, _ := excelize.ColumnNumberToName(ci + 1)
		if err := f.SetColWidth(columnsSheet, name, name, 48); err != nil {
			return err
		}
	}
	return nil
}

func writeTree(f *excelize.File, ov Overview, header int) error {
	headers := []string{"Depth", "Decision", "Choice", "Branch", "Points", "Target"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(treeSheet, cell, h); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(treeSheet, "A1", "F1", header); err != nil {
		return err
	}

	row := 2
	var werr error
	ov.Tree.Walk(func(depth int, n *Node) {
		for _, b := range n.Branches {
			if werr != nil {
				return
			}
			values := []any{depth + 1, decisionLabel(n.Decision), b.Choice.Text, string(b.Choice.Branch()), b.Choice.Points, b.Label()}
			cell, _ := excelize.CoordinatesToCellName(1, row)
			werr = f.SetSheetRow(treeSheet, cell, &values)
			row++
		}
	})
	if werr != nil {
		return werr
	}
	return f.SetColWidth(treeSheet, "B", "C", 40)
}

func decisionLabel(d Decision) string {
	if d.Title != "" {
		return d.Title
	}
	return d.ID
}

// choiceLabel uses the tree's resolution when the decision was expanded and
// falls back to the target's level otherwise.
func choiceLabel(ov Overview, d Decision, c Choice) string {
	if b, ok := ov.BranchFor(d.ID, c.ID); ok {
		return fmt.Sprintf("%s → %s", c.Text, b.Label())
	}
	for _, col := range ov.Columns {
		for _, target := range col.Decisions {
			if c.NextDecisionID != "" && target.ID == c.NextDecisionID {
				return fmt.Sprintf("%s → level %d", c.Text, target.Level)
			}
		}
	}
	return fmt.Sprintf("%s → End", c.Text)
}
