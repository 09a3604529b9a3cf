// Package sequence streams FASTA and EMBL flatfiles, plain or gzip
// compressed, without holding whole records in memory.
package sequence

import (
	"bufio"
	"compress/gzip"
	"io"
	"os"
	"strings"

	"github.com/nishad/enasub/internal/errors"
)

// lineBufferSize bounds the memory used per open file. Longer lines are
// delivered in fragments.
const lineBufferSize = 64 * 1024

// gzipReadCloser closes the decompressor and the file beneath it.
type gzipReadCloser struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipReadCloser) Close() error {
	err := g.Reader.Close()
	if ferr := g.file.Close(); err == nil {
		err = ferr
	}
	return err
}

// IsGzip reports whether path names a gzip file by its suffix.
func IsGzip(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".gz")
}

// Open returns a reader over the decompressed content of path.
func Open(path string) (io.ReadCloser, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.E(errors.Op("sequence.open"), errors.KindIO, errors.Path(path), err)
	}
	if !IsGzip(path) {
		return fh, nil
	}
	gr, err := gzip.NewReader(fh)
	if err != nil {
		_ = fh.Close()
		return nil, errors.E(errors.Op("sequence.open"), errors.KindIO, errors.Path(path), err)
	}
	return &gzipReadCloser{Reader: gr, file: fh}, nil
}

// eachFragment walks r line by line. Lines longer than the buffer arrive
// as several fragments; start marks the first fragment of a line and end
// the last. Returning true from fn stops the walk.
func eachFragment(r io.Reader, fn func(frag []byte, start, end bool) bool) error {
	br := bufio.NewReaderSize(r, lineBufferSize)
	start := true
	for {
		frag, isPrefix, err := br.ReadLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if fn(frag, start, !isPrefix) {
			return nil
		}
		start = !isPrefix
	}
}
