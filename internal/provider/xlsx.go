package provider

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/tempscore-cli/internal/model"
)

// Default sheet names in a provider workbook.
const (
	SheetFundamentals = "fundamentals"
	SheetTargets      = "targets"
	SheetPortfolio    = "portfolio"
)

// XLSXProvider reads fundamentals and targets from one workbook with a
// sheet per dataset. Column layout matches the CSV provider: located by
// header name, order-independent.
type XLSXProvider struct {
	path string
}

// NewXLSX creates an XLSXProvider for the given workbook.
func NewXLSX(path string) *XLSXProvider {
	return &XLSXProvider{path: path}
}

// Fundamentals loads fundamental records for the requested company IDs.
func (p *XLSXProvider) Fundamentals(ctx context.Context, companyIDs []string) (map[string]model.Fundamentals, error) {
	want := idSet(companyIDs)
	out := make(map[string]model.Fundamentals, len(companyIDs))

	err := readSheet(ctx, p.path, SheetFundamentals, func(row csvRow) error {
		id := row.str("company_id")
		if want != nil && !want[id] {
			return nil
		}
		f, err := parseFundamentalsRow(row)
		if err != nil {
			return err
		}
		out[id] = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Targets loads reduction targets for the requested company IDs.
func (p *XLSXProvider) Targets(ctx context.Context, companyIDs []string) (map[string][]model.Target, error) {
	want := idSet(companyIDs)
	out := make(map[string][]model.Target)

	err := readSheet(ctx, p.path, SheetTargets, func(row csvRow) error {
		id := row.str("company_id")
		if want != nil && !want[id] {
			return nil
		}
		t, err := parseTargetRow(row)
		if err != nil {
			return err
		}
		out[id] = append(out[id], t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LoadPortfolioXLSX reads portfolio positions from the portfolio sheet of
// a workbook.
func LoadPortfolioXLSX(ctx context.Context, path string) ([]model.Position, error) {
	var portfolio []model.Position
	seen := make(map[string]bool)

	err := readSheet(ctx, path, SheetPortfolio, func(row csvRow) error {
		id := row.str("company_id")
		if id == "" {
			return eris.Errorf("portfolio: empty company_id on row %d", row.line)
		}
		if seen[id] {
			return eris.Errorf("portfolio: duplicate company_id %q on row %d", id, row.line)
		}
		seen[id] = true

		investment, err := row.float("investment_value")
		if err != nil {
			return err
		}
		portfolio = append(portfolio, model.Position{CompanyID: id, Investment: investment})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(portfolio) == 0 {
		return nil, eris.Errorf("portfolio: no positions in %s", path)
	}
	return portfolio, nil
}

// readSheet walks one sheet of a workbook, treating the first row as a
// header and dispatching the rest through the shared row parser.
func readSheet(ctx context.Context, path, sheetName string, fn func(csvRow) error) error {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return eris.Wrapf(err, "xlsx: open %s", path)
	}
	sheet, ok := f.Sheet[sheetName]
	if !ok {
		return eris.Errorf("xlsx: sheet %q not found in %s", sheetName, path)
	}

	var index map[string]int
	for i, row := range sheet.Rows {
		if ctx.Err() != nil {
			return eris.Wrap(ctx.Err(), "xlsx: context cancelled")
		}

		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}

		if i == 0 {
			index = make(map[string]int, len(cells))
			for j, name := range cells {
				index[strings.ToLower(strings.TrimSpace(name))] = j
			}
			continue
		}
		if isEmptyRow(cells) {
			continue
		}

		if err := fn(csvRow{path: path, line: i + 1, index: index, fields: cells}); err != nil {
			return err
		}
	}
	return nil
}

// isEmptyRow reports whether every cell is blank. Spreadsheets routinely
// carry trailing formatted-but-empty rows.
func isEmptyRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
