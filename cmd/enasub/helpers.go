package main

import (
	"fmt"
	"os"
	"strings"
)

// ANSI styles used by the status output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// colorEnabled reports whether styling f is wanted: a character device,
// with neither --no-color nor NO_COLOR set.
func colorEnabled(f *os.File) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

func paint(f *os.File, color, text string) string {
	if !colorEnabled(f) {
		return text
	}
	return color + text + colorReset
}

// colorize styles text bound for stdout.
func colorize(color, text string) string {
	return paint(os.Stdout, color, text)
}

// notice is one kind of status line.
type notice struct {
	stream *os.File
	mark   string
	color  string
	// shown decides at print time, after flags are parsed.
	shown func() bool
}

var (
	always      = func() bool { return true }
	unlessQuiet = func() bool { return !quiet }

	noticeError   = notice{os.Stderr, "✗", colorRed, always}
	noticeWarning = notice{os.Stderr, "⚠", colorYellow, always}
	noticeSuccess = notice{os.Stdout, "✓", colorGreen, unlessQuiet}
	noticeInfo    = notice{os.Stdout, "", colorCyan, unlessQuiet}
	noticeDebug   = notice{os.Stderr, "[DEBUG]", colorGray, func() bool { return debug }}
)

func (n notice) printf(format string, args ...interface{}) {
	if !n.shown() {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if n.mark == "" {
		fmt.Fprintln(n.stream, paint(n.stream, n.color, msg))
		return
	}
	fmt.Fprintf(n.stream, "%s %s\n", paint(n.stream, n.color, n.mark), msg)
}

func printError(format string, args ...interface{})   { noticeError.printf(format, args...) }
func printWarning(format string, args ...interface{}) { noticeWarning.printf(format, args...) }
func printSuccess(format string, args ...interface{}) { noticeSuccess.printf(format, args...) }
func printInfo(format string, args ...interface{})    { noticeInfo.printf(format, args...) }
func printDebug(format string, args ...interface{})   { noticeDebug.printf(format, args...) }

// printRule separates a heading from the table under it.
func printRule() {
	if !quiet {
		fmt.Println(colorize(colorGray, strings.Repeat("─", 40)))
	}
}
