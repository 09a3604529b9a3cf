package table

import (
	"testing"

	"github.com/nishad/enasub/internal/errors"
	"github.com/nishad/enasub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var header = []string{" study ", "Sample", "FASTA", "description"}

func TestLoadTSVNormalizesColumns(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteTSV(t, dir, "meta.tsv", header,
		[]string{"PRJEB1", " S1 ", "a.fasta", "nan"},
		[]string{"", "", "", ""},
		[]string{"PRJEB1", "S2"},
	)

	tbl, err := Load(path, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"STUDY", "SAMPLE", "FASTA", "DESCRIPTION"}, tbl.Columns)
	require.Len(t, tbl.Rows, 2, "blank rows are dropped")

	first := tbl.Rows[0]
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, "S1", first.Get("sample"), "lookups are case-insensitive and cells trimmed")
	_, ok := first.Value("DESCRIPTION")
	assert.False(t, ok, "nan counts as missing by default")

	second := tbl.Rows[1]
	assert.Equal(t, 2, second.Number)
	_, ok = second.Value("FASTA")
	assert.False(t, ok, "short rows are padded with empty cells")
}

func TestLoadNaNKeptWhenDisabled(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteTSV(t, dir, "meta.txt", header, []string{"P", "S", "x.fa", "NaN"})

	tbl, err := Load(path, Options{Case: Upper, NaNAsMissing: false})
	require.NoError(t, err)

	v, ok := tbl.Rows[0].Value("DESCRIPTION")
	assert.True(t, ok)
	assert.Equal(t, "NaN", v)
}

func TestLoadLowerCase(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteTSV(t, dir, "meta.tab", header, []string{"P", "S", "x.fa", "d"})

	tbl, err := Load(path, Options{Case: Lower})
	require.NoError(t, err)

	assert.Equal(t, []string{"study", "sample", "fasta", "description"}, tbl.Columns)
	assert.True(t, tbl.Has("STUDY"))
	assert.Equal(t, "S", tbl.Rows[0].Get("SAMPLE"))
}

func TestLoadSpreadsheetMatchesTSV(t *testing.T) {
	dir := t.TempDir()
	rows := [][]string{
		{"PRJEB1", "S1", "a.fasta", "first"},
		{"PRJEB1", "S2", "b.fasta", ""},
	}
	tsv := testutil.WriteTSV(t, dir, "meta.tsv", header, rows...)
	xlsx := testutil.WriteXLSX(t, dir, "meta.xlsx", header, rows...)

	fromTSV, err := Load(tsv, DefaultOptions())
	require.NoError(t, err)
	fromXLSX, err := Load(xlsx, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, fromTSV.Columns, fromXLSX.Columns)
	require.Len(t, fromXLSX.Rows, len(fromTSV.Rows))
	for i := range fromTSV.Rows {
		for _, col := range fromTSV.Columns {
			assert.Equal(t, fromTSV.Rows[i].Get(col), fromXLSX.Rows[i].Get(col), "row %d column %s", i+1, col)
		}
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "meta.ods", "whatever")

	_, err := Load(path, DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindLoad))
	assert.Contains(t, err.Error(), "unsupported extension")
	for _, ext := range SupportedExtensions() {
		assert.Contains(t, err.Error(), ext)
	}
}

func TestLoadDuplicateColumns(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteTSV(t, dir, "meta.tsv", []string{"SAMPLE", "sample "}, []string{"a", "b"})

	_, err := Load(path, DefaultOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate column SAMPLE")
}

func TestLoadEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "meta.tsv", "")

	_, err := Load(path, DefaultOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no header row")
}

func TestMissingAndColumnsWhere(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteTSV(t, dir, "meta.tsv",
		[]string{"SAMPLE", "fastq1", "FASTQ_R2", "BAM"}, []string{"s", "a", "b", ""})

	tbl, err := Load(path, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"STUDY", "NAME"}, tbl.Missing([]string{"STUDY", "SAMPLE", "NAME"}))
	fastq := tbl.ColumnsWhere(func(c string) bool { return len(c) >= 5 && c[:5] == "FASTQ" })
	assert.Equal(t, []string{"FASTQ1", "FASTQ_R2"}, fastq)
}

func TestParseCase(t *testing.T) {
	c, err := ParseCase("Lower")
	require.NoError(t, err)
	assert.Equal(t, Lower, c)

	c, err = ParseCase("")
	require.NoError(t, err)
	assert.Equal(t, Upper, c)

	_, err = ParseCase("title")
	assert.Error(t, err)
}
