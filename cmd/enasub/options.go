package main

import (
	"github.com/nishad/enasub/internal/config"
	"github.com/nishad/enasub/internal/ledger"
	"github.com/nishad/enasub/internal/pipeline"
	"github.com/nishad/enasub/internal/stage"
	"github.com/nishad/enasub/internal/table"
	"github.com/nishad/enasub/internal/validator"
	"github.com/nishad/enasub/internal/webin"
)

// packageFlags are the command-line overrides shared by genome and reads.
type packageFlags struct {
	submissionDir string
	baseDir       string
	link          string
	keepNaN       bool
	noCopy        bool
	level         string // genome only
	minGapLength  int    // genome only
	submit        bool
}

// pipelineOptions layers flags over the loaded configuration.
func pipelineOptions(c *config.Config, schema validator.Schema, f packageFlags) (pipeline.Options, error) {
	opts := pipeline.DefaultOptions()

	colCase, err := table.ParseCase(c.Table.ColumnCase)
	if err != nil {
		return opts, err
	}
	opts.Table = table.Options{Case: colCase, NaNAsMissing: c.Table.NaNAsMissing && !f.keepNaN}
	opts.CopyInput = c.Table.CopyInput && !f.noCopy
	opts.SubmissionDir = firstNonEmpty(f.submissionDir, c.SubmissionDir)
	opts.BaseDir = f.baseDir

	opts.Defaults = validator.Defaults{
		Level:        firstNonEmpty(f.level, c.Assembly.DefaultLevel),
		MinGapLength: c.Assembly.MinGapLength,
	}
	if f.minGapLength > 0 {
		opts.Defaults.MinGapLength = f.minGapLength
	}
	opts.GapThreshold = c.Assembly.GapThreshold

	assemblyLink := c.Assembly.LinkMode
	readsLink := c.Reads.LinkMode
	if f.link != "" {
		if schema == validator.SchemaReads {
			readsLink = f.link
		} else {
			assemblyLink = f.link
		}
	}
	if opts.AssemblyStage, err = stageOptions(c, assemblyLink); err != nil {
		return opts, err
	}
	if opts.ReadsStage, err = stageOptions(c, readsLink); err != nil {
		return opts, err
	}
	return opts, nil
}

func stageOptions(c *config.Config, link string) (stage.Options, error) {
	mode, err := stage.ParseLinkMode(link)
	if err != nil {
		return stage.Options{}, err
	}
	return stage.Options{
		Link:       mode,
		BufferSize: c.Staging.BufferSize,
		Level:      c.Staging.CompressionLevel,
	}, nil
}

// submitFlags are the command-line overrides for the submission client.
type submitFlags struct {
	jar         string
	java        string
	credentials string
	logsDir     string
	live        bool
}

// webinOptions resolves the jar and credentials for a submission context.
func webinOptions(c *config.Config, ctx webin.Context, f submitFlags) (webin.Options, error) {
	jar, err := webin.FindJar(firstNonEmpty(f.jar, c.Webin.Jar), ".")
	if err != nil {
		return webin.Options{}, err
	}
	creds, err := webin.LoadCredentials(firstNonEmpty(f.credentials, c.Webin.Credentials))
	if err != nil {
		return webin.Options{}, err
	}
	return webin.Options{
		Java:        firstNonEmpty(f.java, c.Webin.Java),
		Jar:         jar,
		Context:     ctx,
		Credentials: creds,
		Live:        f.live || c.Webin.Live,
		LogsDir:     firstNonEmpty(f.logsDir, c.LogsDir),
	}, nil
}

// openLedger returns nil when the ledger is disabled or cannot be opened;
// packaging goes ahead without it.
func openLedger(c *config.Config) *ledger.DB {
	if noLedger || !c.Ledger.Enabled {
		return nil
	}
	db, err := ledger.Open(c.Ledger.Path)
	if err != nil {
		printWarning("Run ledger unavailable: %v", err)
		return nil
	}
	return db
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
