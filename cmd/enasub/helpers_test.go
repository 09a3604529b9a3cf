package main

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColorizeHonoursNoColor(t *testing.T) {
	old := noColor
	t.Cleanup(func() { noColor = old })

	noColor = true
	assert.Equal(t, "done", colorize(colorGreen, "done"))
}

func TestNoticeVisibility(t *testing.T) {
	oldQuiet, oldDebug := quiet, debug
	t.Cleanup(func() { quiet, debug = oldQuiet, oldDebug })

	quiet, debug = true, false
	assert.False(t, noticeSuccess.shown())
	assert.False(t, noticeInfo.shown())
	assert.False(t, noticeDebug.shown())
	assert.True(t, noticeError.shown(), "errors print even when quiet")
	assert.True(t, noticeWarning.shown())

	quiet, debug = false, true
	assert.True(t, noticeInfo.shown())
	assert.True(t, noticeDebug.shown())
}

func TestNoticeWritesMarkAndMessage(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)

	oldColor := noColor
	t.Cleanup(func() { noColor = oldColor })
	noColor = true

	n := notice{stream: w, mark: "✓", color: colorGreen, shown: always}
	n.printf("wrote %d manifest(s)", 3)
	require.NoError(t, w.Close())

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "✓ wrote 3 manifest(s)\n", string(out))
}
