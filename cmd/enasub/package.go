package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nishad/enasub/internal/pipeline"
	"github.com/nishad/enasub/internal/validator"
	"github.com/nishad/enasub/internal/webin"
	"github.com/spf13/cobra"
)

var genomeCmd = &cobra.Command{
	Use:   "genome [TABLE]",
	Short: "Package genome assemblies",
	Long: `Package genome assemblies described by a metadata table.

Each row names either a FLATFILE (EMBL, optionally gzipped) or a FASTA file.
Rows are validated up front; any invalid row stops the run before files are
staged. For every row a sample directory is created under the submission
directory holding the compressed sequence, a chromosome list or AGP where
the assembly level needs one, and manifest.txt.

The table defaults to assembly.table from the configuration.`,
	Example: `  # Package using the table from config.yaml
  enasub genome

  # Scaffold-level assemblies with a default minimum gap length
  enasub genome assemblies.xlsx --level scaffold --min-gap-length 100

  # Package and submit to the test service in one go
  enasub genome assemblies.xlsx --submit`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPackage(cmd, args, validator.SchemaGenome, genomeFlags)
	},
}

var readsCmd = &cobra.Command{
	Use:   "reads [TABLE]",
	Short: "Package raw sequencing reads",
	Long: `Package raw reads described by a metadata table.

Each row names one BAM or CRAM file, or one or more FASTQ files in columns
whose names start with FASTQ (FASTQ1, FASTQ2, ...). Uncompressed files are
gzip-compressed into the sample directory; files that are already gzipped
are hard linked.

The table defaults to reads.table from the configuration.`,
	Example: `  enasub reads runs.xlsx
  enasub reads runs.tsv --base-dir /data/fastq --submission-dir reads_submission`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPackage(cmd, args, validator.SchemaReads, readsFlags)
	},
}

var (
	genomeFlags = &packageFlags{}
	readsFlags  = &packageFlags{}

	// Shared by --submit on both package commands.
	packageSubmit = &submitFlags{}
)

func init() {
	for _, c := range []struct {
		cmd   *cobra.Command
		flags *packageFlags
	}{{genomeCmd, genomeFlags}, {readsCmd, readsFlags}} {
		f := c.cmd.Flags()
		f.StringVarP(&c.flags.submissionDir, "submission-dir", "o", "", "Directory sample folders are created in (default from config)")
		f.StringVar(&c.flags.baseDir, "base-dir", "", "Resolve relative file paths in the table against this directory")
		f.StringVar(&c.flags.link, "link", "", "Link type for already-compressed files (hard|symbolic)")
		f.BoolVar(&c.flags.keepNaN, "keep-nan", false, `Treat literal "nan" cells as data instead of empty`)
		f.BoolVar(&c.flags.noCopy, "no-copy-table", false, "Do not copy the table into the submission directory")
		f.BoolVar(&c.flags.submit, "submit", false, "Submit the manifests with Webin-CLI after packaging")
		f.StringVar(&packageSubmit.jar, "jar", "", "Path to the webin-cli jar (with --submit)")
		f.StringVar(&packageSubmit.credentials, "credentials", "", "Credentials file (with --submit)")
		f.BoolVar(&packageSubmit.live, "live", false, "Submit for real instead of to the test service (with --submit)")
	}
	genomeCmd.Flags().StringVar(&genomeFlags.level, "level", "", "Assembly level for rows without ASSEMBLY_LEVEL (contig|scaffold|chromosome)")
	genomeCmd.Flags().IntVar(&genomeFlags.minGapLength, "min-gap-length", 0, "MINGAPLENGTH for scaffold rows without one")
}

func runPackage(cmd *cobra.Command, args []string, schema validator.Schema, flags *packageFlags) error {
	tablePath := cfg.Assembly.Table
	if schema == validator.SchemaReads {
		tablePath = cfg.Reads.Table
	}
	if len(args) == 1 {
		tablePath = args[0]
	}
	if tablePath == "" {
		return fmt.Errorf("no %s table given; pass one as an argument or set %s.table in the config", schema, configSection(schema))
	}

	opts, err := pipelineOptions(cfg, schema, *flags)
	if err != nil {
		return err
	}

	db := openLedger(cfg)
	var recorder pipeline.Recorder
	if db != nil {
		defer db.Close()
		recorder = db
	}

	printInfo("Packaging %s table %s into %s", schema, tablePath, opts.SubmissionDir)
	start := time.Now()

	p := pipeline.New(opts, logger, recorder)
	var results []pipeline.Result
	if schema == validator.SchemaReads {
		results, err = p.PackageReads(tablePath)
	} else {
		results, err = p.PackageGenome(tablePath)
	}
	printResults(results)
	if err != nil {
		if len(results) > 0 {
			printWarning("%d manifest(s) were written before the failure and remain on disk", len(results))
		}
		return err
	}

	var staged int64
	manifests := make([]string, 0, len(results))
	for _, r := range results {
		manifests = append(manifests, r.Manifest)
		for _, f := range r.Files {
			staged += f.Bytes
		}
	}
	printSuccess("Packaged %d sample(s) into %s (%s staged in %s)",
		len(results), opts.SubmissionDir, humanize.Bytes(uint64(staged)), time.Since(start).Round(time.Millisecond))

	if !flags.submit {
		return nil
	}
	ctx := webin.ContextGenome
	if schema == validator.SchemaReads {
		ctx = webin.ContextReads
	}
	return submitManifests(ctx, manifests, *packageSubmit, db)
}

func printResults(results []pipeline.Result) {
	if quiet || len(results) == 0 {
		return
	}
	printRule()
	for _, r := range results {
		names := make([]string, 0, len(r.Files))
		for _, f := range r.Files {
			names = append(names, f.Name)
		}
		fmt.Printf("  %s %-20s %s %v\n",
			colorize(colorGray, fmt.Sprintf("row %-4d", r.Row)),
			colorize(colorBold, filepath.Base(r.Directory)),
			colorize(colorCyan, r.Manifest),
			names)
	}
	printRule()
}

func configSection(schema validator.Schema) string {
	if schema == validator.SchemaReads {
		return "reads"
	}
	return "assembly"
}
