// Package pipeline turns a metadata table into per-sample submission
// directories, one manifest each, for genome assemblies or raw reads.
package pipeline

import (
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/nishad/enasub/internal/assembly"
	"github.com/nishad/enasub/internal/errors"
	"github.com/nishad/enasub/internal/manifest"
	"github.com/nishad/enasub/internal/samples"
	"github.com/nishad/enasub/internal/sequence"
	"github.com/nishad/enasub/internal/stage"
	"github.com/nishad/enasub/internal/table"
	"github.com/nishad/enasub/internal/validator"
	"go.uber.org/zap"
)

// Options configures a Pipeline.
type Options struct {
	// SubmissionDir is the root sample directories are created under.
	SubmissionDir string
	Table         table.Options
	// CopyInput keeps a copy of the metadata table in SubmissionDir.
	CopyInput bool
	Defaults  validator.Defaults
	// GapThreshold is the N-run length used by the contig-level check
	// when a scaffold row has no gap length of its own.
	GapThreshold int
	// BaseDir resolves relative file cells. Empty means the working
	// directory.
	BaseDir       string
	AssemblyStage stage.Options
	ReadsStage    stage.Options
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	genome := stage.DefaultOptions()
	genome.Link = stage.LinkSymbolic
	return Options{
		SubmissionDir: "submission",
		Table:         table.DefaultOptions(),
		CopyInput:     true,
		Defaults:      validator.Defaults{Level: assembly.LevelChromosome.String()},
		GapThreshold:  10,
		AssemblyStage: genome,
		ReadsStage:    stage.DefaultOptions(),
	}
}

// Result describes one packaged row.
type Result struct {
	Row       int
	Sample    string
	Directory string
	Manifest  string
	Files     []stage.Asset
}

// Pipeline packages tables. Each Package call is an independent run with
// its own sample directory allocator.
type Pipeline struct {
	opts     Options
	logger   *zap.Logger
	recorder Recorder
	newID    func() string
	now      func() time.Time
}

// New returns a Pipeline. logger and recorder may be nil.
func New(opts Options, logger *zap.Logger, recorder Recorder) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if opts.GapThreshold < 1 {
		opts.GapThreshold = DefaultOptions().GapThreshold
	}
	if opts.SubmissionDir == "" {
		opts.SubmissionDir = DefaultOptions().SubmissionDir
	}
	return &Pipeline{
		opts:     opts,
		logger:   logger,
		recorder: recorder,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// run holds the state of one Package call.
type run struct {
	Run
	alloc  *samples.Allocator
	stager *stage.Stager
	logger *zap.Logger
}

func (p *Pipeline) start(schema validator.Schema, tablePath string, stageOpts stage.Options) *run {
	r := &run{
		Run: Run{
			ID:            p.newID(),
			Schema:        schema.String(),
			Table:         tablePath,
			SubmissionDir: p.opts.SubmissionDir,
			Started:       p.now(),
		},
		alloc: samples.NewAllocator(p.opts.SubmissionDir),
	}
	r.logger = p.logger.With(zap.String("run", r.ID), zap.String("schema", r.Schema))
	r.stager = stage.New(stageOpts, r.logger)

	if err := p.recorder.RunStarted(r.Run); err != nil {
		r.logger.Warn("failed to record run start", zap.Error(err))
	}
	return r
}

func (p *Pipeline) finish(r *run, results []Result, runErr error) {
	if err := p.recorder.RunFinished(r.ID, len(results), runErr); err != nil {
		r.logger.Warn("failed to record run end", zap.Error(err))
	}
	if runErr != nil {
		r.logger.Error("packaging stopped",
			zap.Int("packaged", len(results)),
			zap.Error(runErr))
		return
	}
	var total int64
	for _, res := range results {
		for _, f := range res.Files {
			total += f.Bytes
		}
	}
	r.logger.Info("packaging finished",
		zap.Int("manifests", len(results)),
		zap.String("staged", humanize.Bytes(uint64(total))),
		zap.Duration("elapsed", p.now().Sub(r.Started)))
}

func (p *Pipeline) written(r *run, res Result) {
	r.logger.Info("wrote manifest",
		zap.Int("row", res.Row),
		zap.String("sample", res.Sample),
		zap.String("manifest", res.Manifest))
	if err := p.recorder.ManifestWritten(r.ID, res); err != nil {
		r.logger.Warn("failed to record manifest", zap.Error(err))
	}
}

// copyInput keeps the table next to the sample directories it produced.
func (p *Pipeline) copyInput(r *run, tablePath string) error {
	if !p.opts.CopyInput {
		return nil
	}
	_, err := r.stager.Stage(tablePath, p.opts.SubmissionDir, stage.ModeCopy)
	return err
}

func (p *Pipeline) load(tablePath string) (*table.Table, error) {
	t, err := table.Load(tablePath, p.opts.Table)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("loaded table",
		zap.String("path", tablePath),
		zap.Int("rows", len(t.Rows)),
		zap.Strings("columns", t.Columns))
	return t, nil
}

func (p *Pipeline) warn(warnings []validator.Warning) {
	for _, w := range warnings {
		p.logger.Warn(w.Message, zap.Int("row", w.Row), zap.String("field", w.Field))
	}
}

func (p *Pipeline) resolve(path string) string {
	if p.opts.BaseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.opts.BaseDir, path)
}

// rowError scopes err to a table row unless it already names one.
func rowError(op errors.Op, row int, err error) error {
	if errors.RowOf(err) > 0 {
		return err
	}
	return errors.E(op, errors.GetKind(err), errors.Row(row), err)
}

// PackageGenome validates every row of a genome table, then stages each
// row's sequence data and writes its manifest.
func (p *Pipeline) PackageGenome(tablePath string) (results []Result, err error) {
	t, err := p.load(tablePath)
	if err != nil {
		return nil, err
	}
	records, warnings, err := validator.Assembly(t, p.opts.Defaults)
	if err != nil {
		return nil, err
	}
	p.warn(warnings)

	r := p.start(validator.SchemaGenome, tablePath, p.opts.AssemblyStage)
	defer func() { p.finish(r, results, err) }()

	if err := p.copyInput(r, tablePath); err != nil {
		return nil, err
	}
	for _, rec := range records {
		res, err := p.packageAssembly(r, rec)
		if err != nil {
			return results, rowError("pipeline.genome", rec.Row, err)
		}
		results = append(results, res)
		p.written(r, res)
	}
	return results, nil
}

func (p *Pipeline) packageAssembly(r *run, rec validator.AssemblyRecord) (Result, error) {
	dir, err := r.alloc.Allocate(rec.Sample)
	if err != nil {
		return Result{}, err
	}
	res := Result{Row: rec.Row, Sample: rec.Sample, Directory: dir}
	source := p.resolve(rec.Source)

	data, err := r.stager.Stage(source, dir, stage.ModeCompress)
	if err != nil {
		return Result{}, err
	}
	res.Files = append(res.Files, data)
	files := manifest.AssemblyFiles{Data: data.Name}

	switch pl := rec.Placement.(type) {
	case assembly.Chromosome:
		id, err := sequence.FirstIdentifier(source)
		if err != nil {
			return Result{}, err
		}
		list, err := manifest.WriteChromosomeList(dir, id, pl)
		if err != nil {
			return Result{}, err
		}
		gz, err := r.stager.Compress(list, list+".gz")
		if err != nil {
			return Result{}, err
		}
		res.Files = append(res.Files, gz)
		files.ChromosomeList = gz.Name
	case assembly.Scaffold:
		if pl.AGP != "" {
			agp, err := r.stager.Stage(p.resolve(pl.AGP), dir, stage.ModeCompress)
			if err != nil {
				return Result{}, err
			}
			res.Files = append(res.Files, agp)
			files.AGP = agp.Name
			break
		}
		p.checkGaps(r, rec, source, pl.MinGapLength)
	case assembly.Contig:
	}

	m, err := manifest.ForAssembly(rec, files)
	if err != nil {
		return Result{}, err
	}
	if res.Manifest, err = m.WriteFile(dir); err != nil {
		return Result{}, err
	}
	return res, nil
}

// checkGaps warns when a scaffold-level FASTA without an AGP shows no run
// of ambiguous bases long enough to be a gap. It never fails the row.
func (p *Pipeline) checkGaps(r *run, rec validator.AssemblyRecord, source string, minGap int) {
	if !rec.IsFasta() {
		r.logger.Debug("skipping gap check for flatfile", zap.Int("row", rec.Row))
		return
	}
	threshold := minGap
	if threshold < 1 {
		threshold = p.opts.GapThreshold
	}
	found, err := sequence.HasGapRunFile(source, threshold)
	if err != nil {
		r.logger.Warn("gap check failed", zap.Int("row", rec.Row), zap.Error(err))
		return
	}
	if !found {
		r.logger.Warn("scaffold level declared but no gap run found; data looks contig-level",
			zap.Int("row", rec.Row),
			zap.String("sample", rec.Sample),
			zap.Int("threshold", threshold))
	}
}

// PackageReads validates every row of a reads table, then stages each
// row's read files and writes its manifest.
func (p *Pipeline) PackageReads(tablePath string) (results []Result, err error) {
	t, err := p.load(tablePath)
	if err != nil {
		return nil, err
	}
	records, warnings, err := validator.Reads(t)
	if err != nil {
		return nil, err
	}
	p.warn(warnings)

	r := p.start(validator.SchemaReads, tablePath, p.opts.ReadsStage)
	defer func() { p.finish(r, results, err) }()

	if err := p.copyInput(r, tablePath); err != nil {
		return nil, err
	}
	for _, rec := range records {
		res, err := p.packageReads(r, rec)
		if err != nil {
			return results, rowError("pipeline.reads", rec.Row, err)
		}
		results = append(results, res)
		p.written(r, res)
	}
	return results, nil
}

func (p *Pipeline) packageReads(r *run, rec validator.ReadsRecord) (Result, error) {
	dir, err := r.alloc.Allocate(rec.Sample)
	if err != nil {
		return Result{}, err
	}
	res := Result{Row: rec.Row, Sample: rec.Sample, Directory: dir}

	names := make([]string, 0, len(rec.Files.Files))
	for _, f := range rec.Files.Files {
		asset, err := r.stager.Stage(p.resolve(f), dir, stage.ModeCompress)
		if err != nil {
			return Result{}, err
		}
		res.Files = append(res.Files, asset)
		names = append(names, asset.Name)
	}

	m, err := manifest.ForReads(rec, names)
	if err != nil {
		return Result{}, err
	}
	if res.Manifest, err = m.WriteFile(dir); err != nil {
		return Result{}, err
	}
	return res, nil
}
