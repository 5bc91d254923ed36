package provider

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/tempscore-cli/internal/model"
)

// CSVProvider reads fundamentals and targets from two CSV files. Columns
// are located by header name so provider exports can reorder or append
// columns without breaking the load.
type CSVProvider struct {
	fundamentalsPath string
	targetsPath      string

	// Charset names the file encoding for non-UTF-8 exports, resolved
	// through the WHATWG encoding index (e.g. "windows-1252"). Empty
	// means UTF-8.
	Charset string
}

// NewCSV creates a CSVProvider for the given file pair.
func NewCSV(fundamentalsPath, targetsPath string) *CSVProvider {
	return &CSVProvider{fundamentalsPath: fundamentalsPath, targetsPath: targetsPath}
}

// Fundamentals loads fundamental records for the requested company IDs.
func (p *CSVProvider) Fundamentals(ctx context.Context, companyIDs []string) (map[string]model.Fundamentals, error) {
	want := idSet(companyIDs)
	out := make(map[string]model.Fundamentals, len(companyIDs))

	err := readCSV(ctx, p.fundamentalsPath, p.Charset, func(row csvRow) error {
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
func (p *CSVProvider) Targets(ctx context.Context, companyIDs []string) (map[string][]model.Target, error) {
	want := idSet(companyIDs)
	out := make(map[string][]model.Target)

	err := readCSV(ctx, p.targetsPath, p.Charset, func(row csvRow) error {
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

// LoadPortfolioCSV reads portfolio positions from a CSV file with
// company_id and investment_value columns.
func LoadPortfolioCSV(ctx context.Context, path string) ([]model.Position, error) {
	var portfolio []model.Position
	seen := make(map[string]bool)

	err := readCSV(ctx, path, "", func(row csvRow) error {
		id := row.str("company_id")
		if id == "" {
			return eris.Errorf("portfolio: empty company_id on line %d", row.line)
		}
		if seen[id] {
			return eris.Errorf("portfolio: duplicate company_id %q on line %d", id, row.line)
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

func parseFundamentalsRow(row csvRow) (model.Fundamentals, error) {
	f := model.Fundamentals{
		CompanyID:   row.str("company_id"),
		CompanyName: row.str("company_name"),
		Sector:      strings.ToLower(row.str("sector")),
		Region:      row.str("region"),
	}

	for _, field := range []struct {
		name string
		dst  *float64
	}{
		{"market_cap", &f.MarketCap},
		{"enterprise_value", &f.EnterpriseValue},
		{"ownership_pct", &f.OwnershipPct},
		{"revenue", &f.Revenue},
		{"cash", &f.Cash},
		{"emissions_s1s2", &f.EmissionsS1S2},
		{"emissions_s3", &f.EmissionsS3},
	} {
		v, err := row.float(field.name)
		if err != nil {
			return model.Fundamentals{}, err
		}
		*field.dst = v
	}
	return f, nil
}

func parseTargetRow(row csvRow) (model.Target, error) {
	coverage, err := model.ParseCoverage(row.str("scope_coverage"))
	if err != nil {
		return model.Target{}, eris.Wrapf(err, "csv: %s line %d", row.path, row.line)
	}
	baseYear, err := row.int("base_year")
	if err != nil {
		return model.Target{}, err
	}
	targetYear, err := row.int("target_year")
	if err != nil {
		return model.Target{}, err
	}
	reduction, err := row.float("reduction_pct")
	if err != nil {
		return model.Target{}, err
	}

	return model.Target{
		ID:           row.str("target_id"),
		CompanyID:    row.str("company_id"),
		Coverage:     coverage,
		BaseYear:     baseYear,
		TargetYear:   targetYear,
		ReductionPct: reduction,
		Status:       model.ParseValidationStatus(row.str("status")),
		Ambition:     row.str("ambition"),
	}, nil
}

// csvRow is one data row with header-indexed access.
type csvRow struct {
	path   string
	line   int
	index  map[string]int
	fields []string
}

func (r csvRow) str(column string) string {
	i, ok := r.index[column]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

func (r csvRow) float(column string) (float64, error) {
	s := r.str(column)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "csv: %s line %d: parse %s", r.path, r.line, column)
	}
	return v, nil
}

func (r csvRow) int(column string) (int, error) {
	s := r.str(column)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, eris.Wrapf(err, "csv: %s line %d: parse %s", r.path, r.line, column)
	}
	return v, nil
}

// readCSV streams a headered CSV file row by row, honoring context
// cancellation between rows.
func readCSV(ctx context.Context, path, charset string, fn func(csvRow) error) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "csv: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	var src io.Reader = f
	if charset != "" {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return eris.Wrapf(err, "csv: unsupported charset %q", charset)
		}
		src = enc.NewDecoder().Reader(f)
	}

	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1 // allow variable fields

	header, err := reader.Read()
	if err != nil {
		return eris.Wrapf(err, "csv: read header of %s", path)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}

	for line := 2; ; line++ {
		if ctx.Err() != nil {
			return eris.Wrap(ctx.Err(), "csv: context cancelled")
		}
		fields, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return eris.Wrapf(err, "csv: read %s line %d", path, line)
		}
		if err := fn(csvRow{path: path, line: line, index: index, fields: fields}); err != nil {
			return err
		}
	}
}

// idSet builds the row filter. A nil slice means no filter: every row
// matches, which the load command uses to import whole files.
func idSet(ids []string) map[string]bool {
	if ids == nil {
		return nil
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
