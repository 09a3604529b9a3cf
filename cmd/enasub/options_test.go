package main

import (
	"path/filepath"
	"testing"

	"github.com/nishad/enasub/internal/config"
	"github.com/nishad/enasub/internal/stage"
	"github.com/nishad/enasub/internal/table"
	"github.com/nishad/enasub/internal/testutil"
	"github.com/nishad/enasub/internal/validator"
	"github.com/nishad/enasub/internal/webin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineOptionsDefaults(t *testing.T) {
	opts, err := pipelineOptions(config.DefaultConfig(), validator.SchemaGenome, packageFlags{})
	require.NoError(t, err)

	assert.Equal(t, "submission", opts.SubmissionDir)
	assert.Equal(t, table.Upper, opts.Table.Case)
	assert.True(t, opts.Table.NaNAsMissing)
	assert.True(t, opts.CopyInput)
	assert.Equal(t, "chromosome", opts.Defaults.Level)
	assert.Equal(t, 10, opts.GapThreshold)
	assert.Equal(t, stage.LinkSymbolic, opts.AssemblyStage.Link)
	assert.Equal(t, stage.LinkHard, opts.ReadsStage.Link)
	assert.Equal(t, 1<<20, opts.ReadsStage.BufferSize)
}

func TestPipelineOptionsFlagsOverrideConfig(t *testing.T) {
	flags := packageFlags{
		submissionDir: "out",
		baseDir:       "/data",
		link:          "hard",
		keepNaN:       true,
		noCopy:        true,
		level:         "scaffold",
		minGapLength:  25,
	}
	opts, err := pipelineOptions(config.DefaultConfig(), validator.SchemaGenome, flags)
	require.NoError(t, err)

	assert.Equal(t, "out", opts.SubmissionDir)
	assert.Equal(t, "/data", opts.BaseDir)
	assert.False(t, opts.Table.NaNAsMissing)
	assert.False(t, opts.CopyInput)
	assert.Equal(t, "scaffold", opts.Defaults.Level)
	assert.Equal(t, 25, opts.Defaults.MinGapLength)
	assert.Equal(t, stage.LinkHard, opts.AssemblyStage.Link)
	assert.Equal(t, stage.LinkHard, opts.ReadsStage.Link)
}

func TestPipelineOptionsLinkFlagOnlyAffectsSchema(t *testing.T) {
	opts, err := pipelineOptions(config.DefaultConfig(), validator.SchemaReads, packageFlags{link: "symbolic"})
	require.NoError(t, err)

	assert.Equal(t, stage.LinkSymbolic, opts.ReadsStage.Link)
	assert.Equal(t, stage.LinkSymbolic, opts.AssemblyStage.Link)

	opts, err = pipelineOptions(config.DefaultConfig(), validator.SchemaGenome, packageFlags{link: "hard"})
	require.NoError(t, err)
	assert.Equal(t, stage.LinkHard, opts.AssemblyStage.Link)
	assert.Equal(t, stage.LinkHard, opts.ReadsStage.Link)
}

func TestPipelineOptionsRejectsBadValues(t *testing.T) {
	_, err := pipelineOptions(config.DefaultConfig(), validator.SchemaReads, packageFlags{link: "junction"})
	assert.Error(t, err)

	c := config.DefaultConfig()
	c.Table.ColumnCase = "title"
	_, err = pipelineOptions(c, validator.SchemaReads, packageFlags{})
	assert.Error(t, err)
}

func TestWebinOptions(t *testing.T) {
	dir := t.TempDir()
	jar := testutil.WriteFile(t, dir, "webin-cli-8.1.0.jar", "")
	creds := testutil.WriteFile(t, dir, "credentials.txt", "Webin-1\nsecret\n")

	c := config.DefaultConfig()
	c.Webin.Jar = jar
	c.Webin.Credentials = creds

	opts, err := webinOptions(c, webin.ContextReads, submitFlags{logsDir: filepath.Join(dir, "logs"), live: true})
	require.NoError(t, err)

	assert.Equal(t, jar, opts.Jar)
	assert.Equal(t, "java", opts.Java)
	assert.Equal(t, "Webin-1", opts.Credentials.Username)
	assert.True(t, opts.Live)
	assert.Equal(t, filepath.Join(dir, "logs"), opts.LogsDir)
	assert.Equal(t, webin.ContextReads, opts.Context)
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}
