package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/nishad/enasub/internal/errors"
	"github.com/nishad/enasub/internal/stage"
	"github.com/nishad/enasub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var genomeHeader = []string{
	"STUDY", "SAMPLE", "RUN_REF", "ASSEMBLYNAME", "ASSEMBLY_TYPE", "COVERAGE",
	"PROGRAM", "PLATFORM", "MOLECULETYPE", "DESCRIPTION", "FLATFILE", "FASTA",
	"ASSEMBLY_LEVEL", "MINGAPLENGTH", "AGP",
}

func genomeRow(sample, flat, fasta, level, gap, agp string) []string {
	return []string{
		"PRJEB1", sample, "ERR1", "asm-" + sample, "clone or isolate", "30",
		"SPAdes", "Illumina", "genomic DNA", "", flat, fasta, level, gap, agp,
	}
}

var readsHeader = []string{
	"STUDY", "SAMPLE", "NAME", "INSTRUMENT", "INSERT_SIZE", "LIBRARY_NAME",
	"LIBRARY_SOURCE", "LIBRARY_SELECTION", "LIBRARY_STRATEGY", "DESCRIPTION",
	"FASTQ1", "FASTQ2", "BAM",
}

func readsRow(sample string, files ...string) []string {
	row := []string{"PRJEB1", sample, "run-" + sample, "Illumina NovaSeq 6000", "300",
		"lib", "GENOMIC", "RANDOM", "WGS", ""}
	for len(files) < 3 {
		files = append(files, "")
	}
	return append(row, files...)
}

type recorder struct {
	runs      []Run
	manifests map[string][]Result
	finished  map[string]int
	errs      map[string]error
}

func newRecorder() *recorder {
	return &recorder{
		manifests: map[string][]Result{},
		finished:  map[string]int{},
		errs:      map[string]error{},
	}
}

func (r *recorder) RunStarted(run Run) error {
	r.runs = append(r.runs, run)
	return nil
}

func (r *recorder) ManifestWritten(runID string, res Result) error {
	r.manifests[runID] = append(r.manifests[runID], res)
	return nil
}

func (r *recorder) RunFinished(runID string, n int, err error) error {
	r.finished[runID] = n
	r.errs[runID] = err
	return nil
}

type fixture struct {
	in   string
	out  string
	opts Options
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{in: t.TempDir(), out: filepath.Join(t.TempDir(), "submission")}
	f.opts = DefaultOptions()
	f.opts.SubmissionDir = f.out
	return f
}

func (f *fixture) pipeline(t *testing.T) (*Pipeline, *recorder, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	rec := newRecorder()
	p := New(f.opts, zap.New(core), rec)
	ids := 0
	p.newID = func() string {
		ids++
		return "run-" + strings.Repeat("x", ids)
	}
	p.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return p, rec, logs
}

func manifestLines(t *testing.T, path string) []string {
	t.Helper()
	return strings.Split(strings.TrimSuffix(testutil.ReadFile(t, path), "\n"), "\n")
}

func TestPackageGenomeFlatfileAndFasta(t *testing.T) {
	f := newFixture(t)
	flat := testutil.WriteFile(t, f.in, "a.embl", "ID   XXX; SV 1;\nAC   * _plastome1;\nSQ   Sequence 4 BP;\n     acgt\n//\n")
	fasta := testutil.WriteFile(t, f.in, "b.fasta", ">seqB plastid\nACGTACGT\n")
	table := testutil.WriteTSV(t, f.in, "genome.tsv", genomeHeader,
		genomeRow("S1", flat, "", "", "", ""),
		genomeRow("S2", "", fasta, "", "", ""),
	)

	p, rec, _ := f.pipeline(t)
	results, err := p.PackageGenome(table)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, filepath.Join(f.out, "S1"), results[0].Directory)
	assert.Equal(t, filepath.Join(f.out, "S2"), results[1].Directory)

	first := manifestLines(t, results[0].Manifest)
	assert.Contains(t, first, "FLATFILE\ta.embl.gz")
	assert.Contains(t, first, "CHROMOSOME_LIST\tchr_list.txt.gz")
	assert.NotContains(t, strings.Join(first, "\n"), "FASTA\t")
	assert.NotContains(t, strings.Join(first, "\n"), "AGP\t")

	second := manifestLines(t, results[1].Manifest)
	assert.Contains(t, second, "FASTA\tb.fasta.gz")
	assert.NotContains(t, strings.Join(second, "\n"), "FLATFILE\t")
	assert.NotContains(t, strings.Join(second, "\n"), "AGP\t")

	assert.Equal(t, "_plastome1\t1\tCircular-Chromosome\tPlastid\n",
		testutil.ReadGzip(t, filepath.Join(f.out, "S1", "chr_list.txt.gz")))
	assert.Equal(t, "seqB\t1\tCircular-Chromosome\tPlastid\n",
		testutil.ReadGzip(t, filepath.Join(f.out, "S2", "chr_list.txt.gz")))
	assert.Equal(t, ">seqB plastid\nACGTACGT\n",
		testutil.ReadGzip(t, filepath.Join(f.out, "S2", "b.fasta.gz")))

	// The table is kept alongside the sample directories.
	_, err = os.Stat(filepath.Join(f.out, "genome.tsv"))
	assert.NoError(t, err)

	require.Len(t, rec.runs, 1)
	assert.Equal(t, "genome", rec.runs[0].Schema)
	assert.Len(t, rec.manifests[rec.runs[0].ID], 2)
	assert.Equal(t, 2, rec.finished[rec.runs[0].ID])
	assert.NoError(t, rec.errs[rec.runs[0].ID])
}

func TestPackageGenomeManifestOrder(t *testing.T) {
	f := newFixture(t)
	fasta := testutil.WriteFile(t, f.in, "g.fa", ">g\nACGTNNNNNNNNNNNNACGT\n")
	row := genomeRow("S1", "", fasta, "scaffold", "10", "")
	row[9] = "draft assembly"
	table := testutil.WriteTSV(t, f.in, "genome.tsv", genomeHeader, row)

	p, _, _ := f.pipeline(t)
	results, err := p.PackageGenome(table)
	require.NoError(t, err)

	want := []string{
		"STUDY\tPRJEB1",
		"SAMPLE\tS1",
		"RUN_REF\tERR1",
		"ASSEMBLYNAME\tasm-S1",
		"ASSEMBLY_TYPE\tclone or isolate",
		"COVERAGE\t30",
		"PROGRAM\tSPAdes",
		"PLATFORM\tIllumina",
		"MOLECULETYPE\tgenomic DNA",
		"DESCRIPTION\tdraft assembly",
		"FASTA\tg.fa.gz",
		"MINGAPLENGTH\t10",
	}
	if diff := cmp.Diff(want, manifestLines(t, results[0].Manifest)); diff != "" {
		t.Errorf("manifest mismatch (-want +got):\n%s", diff)
	}
}

func TestPackageGenomeScaffoldWithAGP(t *testing.T) {
	f := newFixture(t)
	fasta := testutil.WriteFile(t, f.in, "g.fa", ">g\nACGT\n")
	agp := testutil.WriteFile(t, f.in, "g.agp", "g\t1\t4\t1\tW\tctg1\t1\t4\t+\n")
	table := testutil.WriteTSV(t, f.in, "genome.tsv", genomeHeader,
		genomeRow("S1", "", fasta, "scf", "", agp))

	p, _, logs := f.pipeline(t)
	results, err := p.PackageGenome(table)
	require.NoError(t, err)

	lines := manifestLines(t, results[0].Manifest)
	assert.Equal(t, "AGP\tg.agp.gz", lines[len(lines)-1])
	assert.Zero(t, logs.FilterMessageSnippet("contig-level").Len(), "AGP rows skip the gap check")
}

func TestPackageGenomeWarnsContigLevel(t *testing.T) {
	f := newFixture(t)
	f.opts.Defaults.MinGapLength = 10
	noGap := testutil.WriteFile(t, f.in, "flat.fa", ">a\nACGTNNNNACGT\n>b\nNNNNN\n")
	gap := testutil.WriteFile(t, f.in, "gapped.fa", ">a\nACGTNNNNN\nNNNNNACGT\n")
	table := testutil.WriteTSV(t, f.in, "genome.tsv", genomeHeader,
		genomeRow("S1", "", noGap, "scaffold", "", ""),
		genomeRow("S2", "", gap, "scaffold", "", ""),
	)

	p, _, logs := f.pipeline(t)
	results, err := p.PackageGenome(table)
	require.NoError(t, err, "the gap check never blocks packaging")
	require.Len(t, results, 2)

	warned := logs.FilterMessageSnippet("contig-level").All()
	require.Len(t, warned, 1)
	assert.Equal(t, zapcore.WarnLevel, warned[0].Level)
	assert.Equal(t, int64(1), warned[0].ContextMap()["row"])
}

func TestPackageGenomeScaffoldWithoutGapFails(t *testing.T) {
	f := newFixture(t)
	fasta := testutil.WriteFile(t, f.in, "g.fa", ">g\nACGT\n")
	table := testutil.WriteTSV(t, f.in, "genome.tsv", genomeHeader,
		genomeRow("S1", "", fasta, "", "", ""),
		genomeRow("S2", "", fasta, "scaffold", "", ""),
	)

	p, rec, _ := f.pipeline(t)
	_, err := p.PackageGenome(table)
	require.Error(t, err)
	assert.Equal(t, 2, errors.RowOf(err))
	assert.Contains(t, err.Error(), "row 2")
	assert.Contains(t, err.Error(), "MINGAPLENGTH")

	_, statErr := os.Stat(f.out)
	assert.True(t, os.IsNotExist(statErr), "validation runs before anything is staged")
	assert.Empty(t, rec.runs)
}

func TestPackageGenomeDuplicateSamples(t *testing.T) {
	f := newFixture(t)
	fasta := testutil.WriteFile(t, f.in, "g.fa", ">g\nACGT\n")
	table := testutil.WriteTSV(t, f.in, "genome.tsv", genomeHeader,
		genomeRow("S1", "", fasta, "contig", "", ""),
		genomeRow("S1", "", fasta, "contig", "", ""),
		genomeRow("S2", "", fasta, "contig", "", ""),
		genomeRow("S1", "", fasta, "contig", "", ""),
	)

	p, _, _ := f.pipeline(t)
	results, err := p.PackageGenome(table)
	require.NoError(t, err)

	var dirs, ids []string
	for _, r := range results {
		dirs = append(dirs, filepath.Base(r.Directory))
		ids = append(ids, r.Sample)
	}
	assert.Equal(t, []string{"S1", "S1_2", "S2", "S1_3"}, dirs)
	assert.Equal(t, []string{"S1", "S1", "S2", "S1"}, ids)
	assert.Contains(t, manifestLines(t, results[1].Manifest), "SAMPLE\tS1")
}

func TestPackageGenomeLiteralSuffixedSample(t *testing.T) {
	f := newFixture(t)
	a := testutil.WriteFile(t, f.in, "a.fa", ">a\nACGT\n")
	b := testutil.WriteFile(t, f.in, "b.fa", ">b\nACGT\n")
	c := testutil.WriteFile(t, f.in, "c.fa", ">c\nACGT\n")
	table := testutil.WriteTSV(t, f.in, "genome.tsv", genomeHeader,
		genomeRow("A", "", a, "contig", "", ""),
		genomeRow("A", "", b, "contig", "", ""),
		genomeRow("A_2", "", c, "contig", "", ""),
	)

	p, _, _ := f.pipeline(t)
	results, err := p.PackageGenome(table)
	require.NoError(t, err)
	require.Len(t, results, 3)

	var dirs []string
	for _, r := range results {
		dirs = append(dirs, filepath.Base(r.Directory))
	}
	assert.Equal(t, []string{"A", "A_2", "A_2_2"}, dirs)
	assert.Contains(t, manifestLines(t, results[1].Manifest), "FASTA\tb.fa.gz")
	assert.Contains(t, manifestLines(t, results[2].Manifest), "FASTA\tc.fa.gz")
	assert.Contains(t, manifestLines(t, results[2].Manifest), "SAMPLE\tA_2")
}

func TestPackageGenomeMissingSourceNamesFile(t *testing.T) {
	f := newFixture(t)
	fasta := testutil.WriteFile(t, f.in, "g.fa", ">g\nACGT\n")
	missing := filepath.Join(f.in, "gone.fa")
	table := testutil.WriteTSV(t, f.in, "genome.tsv", genomeHeader,
		genomeRow("S1", "", fasta, "", "", ""),
		genomeRow("S2", "", missing, "", "", ""),
	)

	p, rec, _ := f.pipeline(t)
	results, err := p.PackageGenome(table)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindIO))
	assert.Equal(t, 2, errors.RowOf(err))
	assert.Contains(t, err.Error(), missing)

	require.Len(t, results, 1, "earlier rows stay packaged")
	_, statErr := os.Stat(results[0].Manifest)
	assert.NoError(t, statErr)

	id := rec.runs[0].ID
	assert.Equal(t, 1, rec.finished[id])
	assert.Error(t, rec.errs[id])
}

func TestPackageGenomeIsRepeatable(t *testing.T) {
	f := newFixture(t)
	gz := testutil.WriteGzip(t, f.in, "g.fa.gz", ">g\nACGT\n")
	table := testutil.WriteTSV(t, f.in, "genome.tsv", genomeHeader,
		genomeRow("S1", "", gz, "", "", ""))

	p, _, _ := f.pipeline(t)
	_, err := p.PackageGenome(table)
	require.NoError(t, err)
	results, err := p.PackageGenome(table)
	require.NoError(t, err, "a second run over the same output succeeds")

	assert.Equal(t, stage.Unchanged, results[0].Files[0].Method)
	target, err := os.Readlink(filepath.Join(f.out, "S1", "g.fa.gz"))
	require.NoError(t, err)
	assert.Equal(t, gz, target, "genome sources are symlinked by default")
}

func TestPackageReadsPairedFastq(t *testing.T) {
	f := newFixture(t)
	f.opts.BaseDir = f.in
	testutil.WriteFile(t, f.in, "a.fastq", "@r1\nACGT\n+\nIIII\n")
	testutil.WriteFile(t, f.in, "b.fastq", "@r1\nTGCA\n+\nIIII\n")
	table := testutil.WriteTSV(t, f.in, "reads.tsv", readsHeader,
		readsRow("S1", "a.fastq", "b.fastq"))

	p, rec, _ := f.pipeline(t)
	results, err := p.PackageReads(table)
	require.NoError(t, err)
	require.Len(t, results, 1)

	want := []string{
		"STUDY\tPRJEB1",
		"SAMPLE\tS1",
		"NAME\trun-S1",
		"INSTRUMENT\tIllumina NovaSeq 6000",
		"INSERT_SIZE\t300",
		"LIBRARY_NAME\tlib",
		"LIBRARY_SOURCE\tGENOMIC",
		"LIBRARY_SELECTION\tRANDOM",
		"LIBRARY_STRATEGY\tWGS",
		"FASTQ\ta.fastq.gz",
		"FASTQ\tb.fastq.gz",
	}
	if diff := cmp.Diff(want, manifestLines(t, results[0].Manifest)); diff != "" {
		t.Errorf("manifest mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "@r1\nTGCA\n+\nIIII\n", testutil.ReadGzip(t, filepath.Join(f.out, "S1", "b.fastq.gz")))
	assert.Equal(t, "reads", rec.runs[0].Schema)
}

func TestPackageReadsRejectsStagedNameClash(t *testing.T) {
	f := newFixture(t)
	f.opts.BaseDir = f.in
	testutil.WriteFile(t, f.in, "lane1/reads.fastq", "@r1\nACGT\n+\nIIII\n")
	testutil.WriteFile(t, f.in, "lane2/reads.fastq", "@r2\nTTTT\n+\nIIII\n")
	table := testutil.WriteTSV(t, f.in, "reads.tsv", readsHeader,
		readsRow("S1", "lane1/reads.fastq", "lane2/reads.fastq"))

	p, rec, _ := f.pipeline(t)
	_, err := p.PackageReads(table)
	require.Error(t, err)
	assert.Equal(t, 1, errors.RowOf(err))
	assert.Contains(t, err.Error(), "stage to the same name reads.fastq.gz")

	assert.Empty(t, rec.runs, "rejected before the run starts")
	_, statErr := os.Stat(filepath.Join(f.out, "S1"))
	assert.True(t, os.IsNotExist(statErr), "nothing is staged")
}

func TestPackageReadsHardLinksCompressedBam(t *testing.T) {
	f := newFixture(t)
	f.opts.CopyInput = false
	bam := testutil.WriteGzip(t, f.in, "x.bam.gz", "BAM\x01")
	table := testutil.WriteTSV(t, f.in, "reads.tsv", readsHeader,
		readsRow("S1", "", "", bam))

	p, _, _ := f.pipeline(t)
	results, err := p.PackageReads(table)
	require.NoError(t, err)

	assert.Contains(t, manifestLines(t, results[0].Manifest), "BAM\tx.bam.gz")
	staged, err := os.Lstat(filepath.Join(f.out, "S1", "x.bam.gz"))
	require.NoError(t, err)
	assert.Zero(t, staged.Mode()&os.ModeSymlink, "reads are hard linked")

	_, err = os.Stat(filepath.Join(f.out, "reads.tsv"))
	assert.True(t, os.IsNotExist(err), "input table not copied when disabled")
}

func TestPackageReadsMixedTypesFails(t *testing.T) {
	f := newFixture(t)
	table := testutil.WriteTSV(t, f.in, "reads.tsv", readsHeader,
		readsRow("S1", "a.fastq", "", "x.bam"))

	p, _, _ := f.pipeline(t)
	_, err := p.PackageReads(table)
	require.Error(t, err)
	assert.Equal(t, 1, errors.RowOf(err))
	assert.Contains(t, err.Error(), "mixed file types")
}

func TestPackageRejectsUnsupportedTable(t *testing.T) {
	f := newFixture(t)
	path := testutil.WriteFile(t, f.in, "meta.csv", "a,b\n")

	p, _, _ := f.pipeline(t)
	_, err := p.PackageReads(path)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindLoad))
}
