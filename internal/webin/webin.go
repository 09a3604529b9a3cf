// Package webin drives the archive's command-line submission client for
// manifests produced by the pipeline.
package webin

import (
	"bufio"
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nishad/enasub/internal/errors"
	"github.com/nishad/enasub/internal/manifest"
	"go.uber.org/zap"
)

// Context is the submission client's -context value.
type Context string

const (
	ContextGenome Context = "genome"
	ContextReads  Context = "reads"
)

// ParseContext accepts the schema names used by the pipeline.
func ParseContext(s string) (Context, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "genome", "assembly":
		return ContextGenome, nil
	case "reads":
		return ContextReads, nil
	}
	return "", errors.Errorf("webin.context", errors.KindConfig, "unknown submission context %q", s)
}

// Credentials are the submission account's username and password.
type Credentials struct {
	Username string
	Password string
}

// LoadCredentials reads a file holding the username on its first non-blank
// line and the password on its second.
func LoadCredentials(path string) (Credentials, error) {
	const op errors.Op = "webin.credentials"
	f, err := os.Open(path)
	if err != nil {
		return Credentials{}, errors.E(op, errors.KindConfig, errors.Path(path), "credentials file not found", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() && len(lines) < 2 {
		if l := strings.TrimSpace(sc.Text()); l != "" {
			lines = append(lines, l)
		}
	}
	if err := sc.Err(); err != nil {
		return Credentials{}, errors.E(op, errors.KindIO, errors.Path(path), err)
	}
	if len(lines) < 2 {
		return Credentials{}, errors.E(op, errors.KindConfig, errors.Path(path),
			"credentials file must hold the username on line 1 and the password on line 2")
	}
	return Credentials{Username: lines[0], Password: lines[1]}, nil
}

// FindJar returns explicit when it names a file. Otherwise it looks in dir
// for exactly one jar whose name contains "webin-cli".
func FindJar(explicit, dir string) (string, error) {
	const op errors.Op = "webin.jar"
	if explicit != "" {
		if info, err := os.Stat(explicit); err != nil || info.IsDir() {
			return "", errors.E(op, errors.KindConfig, errors.Path(explicit), "submission client jar not found")
		}
		return explicit, nil
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.jar"))
	if err != nil {
		return "", errors.E(op, errors.KindConfig, err)
	}
	var found []string
	for _, m := range matches {
		if strings.Contains(filepath.Base(m), "webin-cli") {
			found = append(found, m)
		}
	}
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return "", errors.Errorf(op, errors.KindConfig, "no webin-cli jar found in %s; pass --jar", dir)
	default:
		sort.Strings(found)
		return "", errors.Errorf(op, errors.KindConfig,
			"several webin-cli jars found (%s); pass --jar", strings.Join(found, ", "))
	}
}

// Discover returns every <submissionDir>/*/manifest.txt in lexical order.
func Discover(submissionDir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(submissionDir, "*", manifest.FileName))
	if err != nil {
		return nil, errors.E(errors.Op("webin.discover"), errors.KindConfig, err)
	}
	if len(matches) == 0 {
		return nil, errors.E(errors.Op("webin.discover"), errors.KindSubmit, errors.Path(submissionDir),
			"no manifests found; package a table first")
	}
	sort.Strings(matches)
	return matches, nil
}

// Redacted replaces credentials in logged command lines.
const Redacted = "******"

// Redact returns a copy of cmd with every secret replaced.
func Redact(cmd []string, secrets ...string) []string {
	out := make([]string, len(cmd))
	for i, arg := range cmd {
		out[i] = arg
		for _, s := range secrets {
			if s != "" && arg == s {
				out[i] = Redacted
				break
			}
		}
	}
	return out
}

// Runner executes an external command and reports its exit code. A
// non-zero exit is not an error; failing to start is.
type Runner interface {
	Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) (int, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	err := cmd.Run()
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) && ctx.Err() == nil {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return -1, err
	}
	return 0, nil
}

// Options configures a Client.
type Options struct {
	Java        string // java executable, "java" when empty
	Jar         string
	Context     Context
	Credentials Credentials
	Live        bool   // omit -test
	LogsDir     string // receipts go to LogsDir/<sample directory>
}

// Client submits manifests one at a time.
type Client struct {
	opts   Options
	runner Runner
	logger *zap.Logger
}

// NewClient checks opts and returns a Client. A nil runner uses os/exec and
// a nil logger discards output.
func NewClient(opts Options, runner Runner, logger *zap.Logger) (*Client, error) {
	const op errors.Op = "webin.client"
	if opts.Jar == "" {
		return nil, errors.Errorf(op, errors.KindConfig, "submission client jar is not set")
	}
	if opts.Credentials.Username == "" || opts.Credentials.Password == "" {
		return nil, errors.Errorf(op, errors.KindConfig, "submission credentials are incomplete")
	}
	if opts.Context == "" {
		return nil, errors.Errorf(op, errors.KindConfig, "submission context is not set")
	}
	if opts.Java == "" {
		opts.Java = "java"
	}
	if opts.LogsDir == "" {
		opts.LogsDir = "logs"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{opts: opts, runner: runner, logger: logger}, nil
}

// OutputDir is where the client writes receipts for a manifest.
func (c *Client) OutputDir(manifestPath string) string {
	return filepath.Join(c.opts.LogsDir, filepath.Base(filepath.Dir(manifestPath)))
}

// Command returns the full command line, credentials included.
func (c *Client) Command(manifestPath, outputDir string) []string {
	cmd := []string{
		c.opts.Java, "-jar", c.opts.Jar,
		"-context", string(c.opts.Context),
		"-manifest", manifestPath,
		"-inputDir", filepath.Dir(manifestPath),
		"-outputDir", outputDir,
	}
	if !c.opts.Live {
		cmd = append(cmd, "-test")
	}
	return append(cmd, "-submit",
		"-username", c.opts.Credentials.Username,
		"-password", c.opts.Credentials.Password)
}

// Result is the outcome of submitting one manifest.
type Result struct {
	Manifest  string
	OutputDir string
	ExitCode  int
	Stdout    string
	Stderr    string
	Err       error // the client could not be started
}

// OK reports whether the client ran and exited cleanly.
func (r Result) OK() bool {
	return r.Err == nil && r.ExitCode == 0
}

// Submit runs the client for each manifest in order. A failing manifest
// does not stop the rest; only cancellation of ctx does.
func (c *Client) Submit(ctx context.Context, manifests []string) ([]Result, error) {
	results := make([]Result, 0, len(manifests))
	for _, m := range manifests {
		if err := ctx.Err(); err != nil {
			return results, errors.E(errors.Op("webin.submit"), errors.KindSubmit, err)
		}
		results = append(results, c.submitOne(ctx, m))
	}
	return results, nil
}

func (c *Client) submitOne(ctx context.Context, manifestPath string) Result {
	res := Result{Manifest: manifestPath, OutputDir: c.OutputDir(manifestPath)}
	if err := os.MkdirAll(res.OutputDir, 0755); err != nil {
		res.Err = errors.E(errors.Op("webin.submit"), errors.KindIO, errors.Path(res.OutputDir), err)
		res.ExitCode = -1
		return res
	}

	cmd := c.Command(manifestPath, res.OutputDir)
	c.logger.Info("running submission client",
		zap.String("manifest", manifestPath),
		zap.Bool("live", c.opts.Live),
		zap.String("command", strings.Join(Redact(cmd, c.opts.Credentials.Username, c.opts.Credentials.Password), " ")))

	var stdout, stderr bytes.Buffer
	code, err := c.runner.Run(ctx, cmd[0], cmd[1:], &stdout, &stderr)
	res.ExitCode, res.Stdout, res.Stderr = code, stdout.String(), stderr.String()
	if err != nil {
		res.Err = errors.E(errors.Op("webin.submit"), errors.KindSubmit, errors.Path(manifestPath), err)
	}

	fields := []zap.Field{zap.String("manifest", manifestPath), zap.Int("exit_code", code)}
	if res.OK() {
		c.logger.Info("submission client finished", fields...)
	} else {
		c.logger.Warn("submission client failed", append(fields, zap.Error(res.Err))...)
	}
	return res
}
