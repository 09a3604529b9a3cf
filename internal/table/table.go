// Package table loads submission metadata tables from spreadsheets or
// tab-delimited text into rows keyed by normalized column name.
package table

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nishad/enasub/internal/errors"
	"github.com/xuri/excelize/v2"
)

// Case is the convention column names are folded to.
type Case int

const (
	Upper Case = iota
	Lower
)

// ParseCase maps "upper"/"lower" (any case) to a Case.
func ParseCase(s string) (Case, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "upper":
		return Upper, nil
	case "lower":
		return Lower, nil
	}
	return Upper, errors.Errorf("table.case", errors.KindConfig, "unknown column case %q", s)
}

// Options controls normalization while loading.
type Options struct {
	Case Case
	// NaNAsMissing makes the literal "nan" (any case) count as an empty
	// cell, matching tables round-tripped through pandas.
	NaNAsMissing bool
}

// DefaultOptions returns upper-case columns with "nan" treated as missing.
func DefaultOptions() Options {
	return Options{Case: Upper, NaNAsMissing: true}
}

var (
	spreadsheetExts = []string{".xlsx", ".xlsm"}
	delimitedExts   = []string{".tsv", ".tab", ".txt"}
)

// SupportedExtensions lists every extension Load accepts.
func SupportedExtensions() []string {
	return append(append([]string{}, spreadsheetExts...), delimitedExts...)
}

// Table is an ordered set of rows sharing one header.
type Table struct {
	Path    string
	Columns []string
	Rows    []Row
	opts    Options
	index   map[string]int
}

// Row is one data row. Number is 1-based and excludes the header.
type Row struct {
	Number int
	cells  map[string]string
	opts   Options
}

const opLoad errors.Op = "table.load"

// Load reads the first sheet of a spreadsheet or a tab-delimited text file.
func Load(path string, opts Options) (*Table, error) {
	ext := strings.ToLower(filepath.Ext(path))

	var (
		records [][]string
		err     error
	)
	switch {
	case contains(spreadsheetExts, ext):
		records, err = readSpreadsheet(path)
	case contains(delimitedExts, ext):
		records, err = readDelimited(path)
	default:
		return nil, errors.E(opLoad, errors.KindLoad, errors.Path(path),
			"unsupported extension "+quoteExt(ext)+"; expected one of "+strings.Join(SupportedExtensions(), ", "))
	}
	if err != nil {
		return nil, errors.E(opLoad, errors.KindLoad, errors.Path(path), err)
	}
	return build(path, records, opts)
}

func build(path string, records [][]string, opts Options) (*Table, error) {
	if len(records) == 0 {
		return nil, errors.E(opLoad, errors.KindLoad, errors.Path(path), "table has no header row")
	}

	t := &Table{Path: path, opts: opts, index: make(map[string]int)}
	for i, raw := range records[0] {
		name := normalize(raw, opts.Case)
		if name == "" {
			continue
		}
		if _, dup := t.index[name]; dup {
			return nil, errors.E(opLoad, errors.KindLoad, errors.Path(path), "duplicate column "+name)
		}
		t.index[name] = i
		t.Columns = append(t.Columns, name)
	}

	number := 0
	for _, record := range records[1:] {
		if blank(record) {
			continue
		}
		number++
		row := Row{Number: number, cells: make(map[string]string, len(t.Columns)), opts: opts}
		for _, name := range t.Columns {
			i := t.index[name]
			if i < len(record) {
				row.cells[name] = strings.TrimSpace(record[i])
			} else {
				row.cells[name] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func readSpreadsheet(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, io.ErrUnexpectedEOF
	}
	return f.GetRows(sheets[0])
}

func readDelimited(path string) ([][]string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	r := csv.NewReader(fh)
	r.Comma = '\t'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

// Has reports whether the header contains col.
func (t *Table) Has(col string) bool {
	_, ok := t.index[normalize(col, t.opts.Case)]
	return ok
}

// Missing returns the columns from cols that are absent from the header,
// in the order given.
func (t *Table) Missing(cols []string) []string {
	var missing []string
	for _, c := range cols {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// ColumnsWhere returns header columns, in header order, accepted by keep.
// Names are passed upper-cased so callers can match schema constants
// regardless of the configured case.
func (t *Table) ColumnsWhere(keep func(upper string) bool) []string {
	var out []string
	for _, c := range t.Columns {
		if keep(strings.ToUpper(c)) {
			out = append(out, c)
		}
	}
	return out
}

// Value returns the trimmed cell for col and whether it holds data.
// Empty cells, absent columns and (optionally) "nan" are not data.
func (r Row) Value(col string) (string, bool) {
	v, ok := r.cells[normalize(col, r.opts.Case)]
	if !ok || v == "" {
		return "", false
	}
	if r.opts.NaNAsMissing && strings.EqualFold(v, "nan") {
		return "", false
	}
	return v, true
}

// Get returns the cell for col, or "" when it holds no data.
func (r Row) Get(col string) string {
	v, _ := r.Value(col)
	return v
}

func normalize(name string, c Case) string {
	name = strings.TrimSpace(name)
	if c == Lower {
		return strings.ToLower(name)
	}
	return strings.ToUpper(name)
}

func blank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func quoteExt(ext string) string {
	if ext == "" {
		return "(none)"
	}
	return `"` + ext + `"`
}
