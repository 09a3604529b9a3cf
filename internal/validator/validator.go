// Package validator checks a metadata table against a submission schema and
// turns every row into a typed record before any file is touched.
package validator

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nishad/enasub/internal/assembly"
	"github.com/nishad/enasub/internal/errors"
	"github.com/nishad/enasub/internal/reads"
	"github.com/nishad/enasub/internal/samples"
	"github.com/nishad/enasub/internal/stage"
	"github.com/nishad/enasub/internal/table"
)

// Schema selects the column set and row rules a table is checked against.
type Schema int

const (
	SchemaGenome Schema = iota
	SchemaReads
)

func (s Schema) String() string {
	if s == SchemaReads {
		return "reads"
	}
	return "genome"
}

// Column names shared by both schemas.
const (
	ColStudy       = "STUDY"
	ColSample      = "SAMPLE"
	ColDescription = "DESCRIPTION"
)

// Genome columns.
const (
	ColRunRef        = "RUN_REF"
	ColAssemblyName  = "ASSEMBLYNAME"
	ColAssemblyType  = "ASSEMBLY_TYPE"
	ColCoverage      = "COVERAGE"
	ColProgram       = "PROGRAM"
	ColPlatform      = "PLATFORM"
	ColMoleculeType  = "MOLECULETYPE"
	ColFlatfile      = "FLATFILE"
	ColFasta         = "FASTA"
	ColAssemblyLevel = "ASSEMBLY_LEVEL"
	ColAGP           = "AGP"
	ColMinGapLength  = "MINGAPLENGTH"
	ColChrName       = "CHR_NAME"
	ColChrType       = "CHR_TYPE"
	ColChrLocation   = "CHR_LOCATION"
)

// Reads columns.
const (
	ColName             = "NAME"
	ColInstrument       = "INSTRUMENT"
	ColInsertSize       = "INSERT_SIZE"
	ColLibraryName      = "LIBRARY_NAME"
	ColLibrarySource    = "LIBRARY_SOURCE"
	ColLibrarySelection = "LIBRARY_SELECTION"
	ColLibraryStrategy  = "LIBRARY_STRATEGY"
)

var requiredColumns = map[Schema][]string{
	SchemaGenome: {
		ColStudy, ColSample, ColRunRef, ColAssemblyName, ColAssemblyType,
		ColCoverage, ColProgram, ColPlatform, ColMoleculeType,
		ColDescription, ColFlatfile, ColFasta,
	},
	SchemaReads: {
		ColStudy, ColSample, ColName, ColInstrument, ColInsertSize,
		ColLibraryName, ColLibrarySource, ColLibrarySelection,
		ColLibraryStrategy, ColDescription,
	},
}

// RequiredColumns returns the header columns a schema cannot do without.
func (s Schema) RequiredColumns() []string {
	return append([]string(nil), requiredColumns[s]...)
}

const (
	opColumns  errors.Op = "validator.columns"
	opAssembly errors.Op = "validator.assembly"
	opReads    errors.Op = "validator.reads"
)

// RequireColumns fails naming every required column absent from the header.
// Reads tables must also carry at least one file column.
func RequireColumns(t *table.Table, s Schema) error {
	missing := t.Missing(requiredColumns[s])
	if s == SchemaReads && len(t.ColumnsWhere(reads.IsFileColumn)) == 0 {
		missing = append(missing, "BAM|CRAM|FASTQ*")
	}
	if len(missing) > 0 {
		return errors.E(opColumns, errors.KindLoad, errors.Path(t.Path),
			fmt.Sprintf("%s table is missing required columns: %s", s, strings.Join(missing, ", ")))
	}
	return nil
}

// Warning is a non-fatal finding about one row.
type Warning struct {
	Row     int
	Field   string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("row %d: %s", w.Row, w.Message)
}

// Defaults are pipeline-wide fallbacks for genome rows.
type Defaults struct {
	Level        string
	MinGapLength int // 0 means unset
}

// AssemblyRecord is a validated genome row.
type AssemblyRecord struct {
	Row          int
	Sample       string
	Study        string
	RunRef       string
	AssemblyName string
	AssemblyType string
	Coverage     string
	Program      string
	Platform     string
	MoleculeType string
	Description  string // empty when the cell is missing

	// DataField is FLATFILE or FASTA, naming the column Source came from.
	DataField string
	Source    string
	Placement assembly.Placement
}

// IsFasta reports whether the primary data source is a FASTA file.
func (r AssemblyRecord) IsFasta() bool {
	return r.DataField == ColFasta
}

var flatfileSuffixes = []string{".embl", ".embl.gz"}

var genbankSuffixes = []string{".gb", ".gbk", ".gb.gz", ".gbk.gz", ".genbank", ".gbff"}

// Assembly validates every genome row. It stops at the first failing row.
func Assembly(t *table.Table, d Defaults) ([]AssemblyRecord, []Warning, error) {
	if err := RequireColumns(t, SchemaGenome); err != nil {
		return nil, nil, err
	}

	var (
		records  []AssemblyRecord
		warnings []Warning
	)
	for _, row := range t.Rows {
		rec, err := assemblyRecord(row, d)
		if err != nil {
			return nil, nil, err
		}
		warnings = append(warnings, emptyFields(row, rec.Row, requiredColumns[SchemaGenome])...)
		records = append(records, rec)
	}
	return records, warnings, nil
}

func assemblyRecord(row table.Row, d Defaults) (AssemblyRecord, error) {
	rec := AssemblyRecord{
		Row:          row.Number,
		Sample:       row.Get(ColSample),
		Study:        row.Get(ColStudy),
		RunRef:       row.Get(ColRunRef),
		AssemblyName: row.Get(ColAssemblyName),
		AssemblyType: row.Get(ColAssemblyType),
		Coverage:     row.Get(ColCoverage),
		Program:      row.Get(ColProgram),
		Platform:     row.Get(ColPlatform),
		MoleculeType: row.Get(ColMoleculeType),
		Description:  row.Get(ColDescription),
	}
	if err := checkSample(opAssembly, row.Number, rec.Sample); err != nil {
		return rec, err
	}

	flat, hasFlat := row.Value(ColFlatfile)
	fasta, hasFasta := row.Value(ColFasta)
	switch {
	case hasFlat && hasFasta:
		return rec, errors.RowErrorf(opAssembly, row.Number, "FLATFILE and FASTA are mutually exclusive, got both")
	case !hasFlat && !hasFasta:
		return rec, errors.RowErrorf(opAssembly, row.Number, "one of FLATFILE or FASTA is required")
	case hasFlat:
		if err := checkFlatfile(row.Number, flat); err != nil {
			return rec, err
		}
		rec.DataField, rec.Source = ColFlatfile, flat
	default:
		rec.DataField, rec.Source = ColFasta, fasta
	}

	placement, err := assembly.Resolve(assembly.Inputs{
		Level:               row.Get(ColAssemblyLevel),
		DefaultLevel:        d.Level,
		AGP:                 row.Get(ColAGP),
		MinGapLength:        row.Get(ColMinGapLength),
		DefaultMinGapLength: d.MinGapLength,
		ChrName:             row.Get(ColChrName),
		ChrType:             row.Get(ColChrType),
		ChrLocation:         row.Get(ColChrLocation),
	})
	if err != nil {
		return rec, errors.E(opAssembly, errors.KindValidation, errors.Row(row.Number), err)
	}
	rec.Placement = placement

	sources := []string{rec.Source}
	if sc, ok := placement.(assembly.Scaffold); ok && sc.AGP != "" {
		sources = append(sources, sc.AGP)
	}
	if err := checkStagedNames(opAssembly, row.Number, sources); err != nil {
		return rec, err
	}
	return rec, nil
}

// checkStagedNames rejects a row whose files would land on the same name
// inside its sample directory, where the later one would replace the
// earlier.
func checkStagedNames(op errors.Op, row int, sources []string) error {
	staged := make(map[string]string, len(sources))
	for _, src := range sources {
		name := stage.CompressedName(src)
		if prev, dup := staged[name]; dup {
			return errors.RowErrorf(op, row, "files %s and %s stage to the same name %s", prev, src, name)
		}
		staged[name] = src
	}
	return nil
}

func checkFlatfile(row int, path string) error {
	low := strings.ToLower(path)
	for _, s := range flatfileSuffixes {
		if strings.HasSuffix(low, s) {
			return nil
		}
	}
	for _, s := range genbankSuffixes {
		if strings.HasSuffix(low, s) {
			return errors.RowErrorf(opAssembly, row,
				"FLATFILE %s is GenBank format; convert it to EMBL (.embl) before packaging", filepath.Base(path))
		}
	}
	return errors.RowErrorf(opAssembly, row,
		"FLATFILE %s must end in %s", filepath.Base(path), strings.Join(flatfileSuffixes, " or "))
}

// ReadsRecord is a validated raw-reads row.
type ReadsRecord struct {
	Row              int
	Sample           string
	Study            string
	Name             string
	Instrument       string
	InsertSize       string
	LibraryName      string
	LibrarySource    string
	LibrarySelection string
	LibraryStrategy  string
	Description      string
	Files            reads.FileSet
}

// Reads validates every reads row. It stops at the first failing row.
func Reads(t *table.Table) ([]ReadsRecord, []Warning, error) {
	if err := RequireColumns(t, SchemaReads); err != nil {
		return nil, nil, err
	}
	fileCols := t.ColumnsWhere(reads.IsFileColumn)

	var (
		records  []ReadsRecord
		warnings []Warning
	)
	for _, row := range t.Rows {
		rec := ReadsRecord{
			Row:              row.Number,
			Sample:           row.Get(ColSample),
			Study:            row.Get(ColStudy),
			Name:             row.Get(ColName),
			Instrument:       row.Get(ColInstrument),
			InsertSize:       row.Get(ColInsertSize),
			LibraryName:      row.Get(ColLibraryName),
			LibrarySource:    row.Get(ColLibrarySource),
			LibrarySelection: row.Get(ColLibrarySelection),
			LibraryStrategy:  row.Get(ColLibraryStrategy),
			Description:      row.Get(ColDescription),
		}
		if err := checkSample(opReads, row.Number, rec.Sample); err != nil {
			return nil, nil, err
		}

		var files []string
		for _, col := range fileCols {
			if v, ok := row.Value(col); ok {
				files = append(files, v)
			}
		}
		set, err := reads.Resolve(files)
		if err != nil {
			return nil, nil, errors.E(opReads, errors.KindValidation, errors.Row(row.Number), err)
		}
		rec.Files = set
		if err := checkStagedNames(opReads, row.Number, set.Files); err != nil {
			return nil, nil, err
		}

		warnings = append(warnings, emptyFields(row, rec.Row, requiredColumns[SchemaReads])...)
		warnings = append(warnings, vocabulary(rec)...)
		records = append(records, rec)
	}
	return records, warnings, nil
}

func checkSample(op errors.Op, row int, id string) error {
	if id == "" {
		return errors.RowErrorf(op, row, "SAMPLE is required")
	}
	if err := samples.CheckID(id); err != nil {
		return errors.E(op, errors.KindValidation, errors.Row(row), err)
	}
	return nil
}

// emptyFields flags required manifest fields left blank. DESCRIPTION and
// the data columns are optional per row and handled elsewhere.
func emptyFields(row table.Row, number int, cols []string) []Warning {
	var out []Warning
	for _, col := range cols {
		switch col {
		case ColDescription, ColFlatfile, ColFasta, ColSample:
			continue
		}
		if _, ok := row.Value(col); !ok {
			out = append(out, Warning{Row: number, Field: col, Message: col + " is empty"})
		}
	}
	return out
}
