package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nishad/enasub/internal/ledger"
	"github.com/nishad/enasub/internal/webin"
	"github.com/spf13/cobra"
)

var submitCmd = &cobra.Command{
	Use:   "submit [MANIFEST...]",
	Short: "Submit packaged manifests with Webin-CLI",
	Long: `Run Webin-CLI once per manifest.

Without arguments the manifests of the latest completed run recorded for the
submission directory are used; without a ledger entry every
<submission-dir>/*/manifest.txt is submitted. Submissions go to the test
service unless --live is given or webin.live is set in the config.

Credentials are read from a file holding the username on the first line
and the password on the second. They never appear in printed commands.
Receipts are written to <logs-dir>/<sample directory>.`,
	Example: `  # Validate against the test service
  enasub submit --context genome

  # Submit specific manifests for real
  enasub submit --context reads --live submission/S1/manifest.txt`,
	RunE: runSubmit,
}

var (
	submitContext string
	submitDir     string
	submitOpts    = &submitFlags{}
)

func init() {
	f := submitCmd.Flags()
	f.StringVarP(&submitContext, "context", "c", "", "Submission context (genome|reads)")
	f.StringVarP(&submitDir, "submission-dir", "o", "", "Directory holding sample folders (default from config)")
	f.StringVar(&submitOpts.jar, "jar", "", "Path to the webin-cli jar (auto-detected in the working directory)")
	f.StringVar(&submitOpts.java, "java", "", "Java executable")
	f.StringVar(&submitOpts.credentials, "credentials", "", "Credentials file (default from config)")
	f.StringVar(&submitOpts.logsDir, "logs-dir", "", "Directory for Webin-CLI receipts (default from config)")
	f.BoolVar(&submitOpts.live, "live", false, "Submit for real instead of to the test service")
	_ = submitCmd.MarkFlagRequired("context")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx, err := webin.ParseContext(submitContext)
	if err != nil {
		return err
	}

	db := openLedger(cfg)
	if db != nil {
		defer db.Close()
	}

	manifests := args
	if len(manifests) == 0 {
		dir := firstNonEmpty(submitDir, cfg.SubmissionDir)
		manifests, err = findManifests(db, dir)
		if err != nil {
			return err
		}
	}
	return submitManifests(ctx, manifests, *submitOpts, db)
}

// findManifests prefers the ledger's record of the latest run over a scan
// of the submission directory.
func findManifests(db *ledger.DB, dir string) ([]string, error) {
	if db != nil {
		records, err := db.LatestManifests(dir)
		if err != nil {
			printWarning("Could not read the run ledger: %v", err)
		}
		var found []string
		for _, r := range records {
			if _, err := os.Stat(r.Path); err == nil {
				found = append(found, r.Path)
			}
		}
		if len(found) > 0 && len(found) == len(records) {
			printDebug("using %d manifest(s) from run %s", len(found), records[0].RunID)
			return found, nil
		}
	}
	return webin.Discover(dir)
}

func submitManifests(wctx webin.Context, manifests []string, flags submitFlags, db *ledger.DB) error {
	opts, err := webinOptions(cfg, wctx, flags)
	if err != nil {
		return err
	}
	client, err := webin.NewClient(opts, nil, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			printWarning("Interrupted, stopping after the current manifest")
			cancel()
		case <-ctx.Done():
		}
	}()

	mode := "test"
	if opts.Live {
		mode = "live"
	}
	printInfo("Submitting %d %s manifest(s) (%s mode)", len(manifests), wctx, mode)
	if !opts.Live {
		printDebug("test mode: Webin-CLI validates and submits to the test service only")
	}

	results, err := client.Submit(ctx, manifests)
	failed := 0
	for _, r := range results {
		if db != nil {
			rec := ledger.SubmissionRecord{
				Manifest:  r.Manifest,
				Context:   string(wctx),
				Live:      opts.Live,
				ExitCode:  r.ExitCode,
				OutputDir: r.OutputDir,
			}
			if err := db.RecordSubmission(rec); err != nil {
				printWarning("Failed to record submission: %v", err)
			}
		}

		if r.OK() {
			printSuccess("%s (receipts in %s)", r.Manifest, r.OutputDir)
			if verbose && strings.TrimSpace(r.Stdout) != "" {
				fmt.Println(r.Stdout)
			}
			continue
		}
		failed++
		if r.Err != nil {
			printError("%s: %v", r.Manifest, r.Err)
		} else {
			printError("%s: Webin-CLI exited with code %d", r.Manifest, r.ExitCode)
		}
		if out := strings.TrimSpace(r.Stdout); out != "" {
			fmt.Println(out)
		}
		if out := strings.TrimSpace(r.Stderr); out != "" {
			fmt.Fprintln(os.Stderr, out)
		}
	}
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d submission(s) failed", failed, len(results))
	}
	return nil
}
