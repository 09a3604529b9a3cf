// Package stage places input files inside a sample directory, either as a
// verbatim copy, a gzip-compressed copy, or a link when the file is already
// compressed or already in place.
package stage

import (
	"compress/gzip"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/nishad/enasub/internal/errors"
	"github.com/nishad/enasub/internal/sequence"
	"go.uber.org/zap"
)

// Mode selects how Stage materializes a file.
type Mode int

const (
	ModeCopy Mode = iota
	ModeCompress
)

// LinkMode selects the link used for sources that are already compressed.
type LinkMode int

const (
	LinkHard LinkMode = iota
	LinkSymbolic
)

// ParseLinkMode maps "hard"/"symbolic" to a LinkMode.
func ParseLinkMode(s string) (LinkMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hard":
		return LinkHard, nil
	case "symbolic", "soft", "symlink":
		return LinkSymbolic, nil
	}
	return LinkHard, errors.Errorf("stage.link_mode", errors.KindConfig, "unknown link mode %q", s)
}

// Method records what Stage did with a file.
type Method string

const (
	Copied     Method = "copied"
	Compressed Method = "compressed"
	Linked     Method = "linked"
	InPlace    Method = "in-place"
	Unchanged  Method = "unchanged"
)

// Asset is a file staged inside a sample directory.
type Asset struct {
	Name   string // basename written into the manifest
	Path   string
	Method Method
	Bytes  int64
}

// Options configures a Stager.
type Options struct {
	Link       LinkMode
	BufferSize int
	Level      int // gzip level
}

// DefaultOptions uses hard links, a 1 MiB buffer and gzip level 6.
func DefaultOptions() Options {
	return Options{Link: LinkHard, BufferSize: 1 << 20, Level: 6}
}

// Stager stages files with bounded memory regardless of file size.
type Stager struct {
	opts   Options
	logger *zap.Logger
}

// New returns a Stager. A nil logger discards output.
func New(opts Options, logger *zap.Logger) *Stager {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultOptions().BufferSize
	}
	if opts.Level == 0 {
		opts.Level = DefaultOptions().Level
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stager{opts: opts, logger: logger}
}

const opStage errors.Op = "stage"

// CompressedName is the name ModeCompress gives src inside a sample
// directory: the base name, with ".gz" appended unless already present.
func CompressedName(src string) string {
	base := filepath.Base(src)
	if sequence.IsGzip(base) {
		return base
	}
	return base + ".gz"
}

// Stage places src inside destDir and returns the staged asset.
//
// In copy mode a source that already resolves to the destination is left
// alone. In compress mode a source already inside destDir is referenced as
// is, a .gz source is linked, and anything else is gzip-streamed into
// destDir as <name>.gz.
func (s *Stager) Stage(src, destDir string, mode Mode) (Asset, error) {
	absSrc, err := filepath.Abs(src)
	if err != nil {
		return Asset{}, errors.E(opStage, errors.KindIO, errors.Path(src), err)
	}
	info, err := os.Stat(absSrc)
	if err != nil {
		return Asset{}, errors.E(opStage, errors.KindIO, errors.Path(absSrc), "source file not found", err)
	}
	if info.IsDir() {
		return Asset{}, errors.E(opStage, errors.KindIO, errors.Path(absSrc), "source is a directory")
	}
	absDir, err := filepath.Abs(destDir)
	if err != nil {
		return Asset{}, errors.E(opStage, errors.KindIO, errors.Path(destDir), err)
	}
	if err := os.MkdirAll(absDir, 0755); err != nil {
		return Asset{}, errors.E(opStage, errors.KindIO, errors.Path(absDir), err)
	}

	base := filepath.Base(absSrc)
	var asset Asset
	switch mode {
	case ModeCopy:
		asset, err = s.copyInto(absSrc, info, filepath.Join(absDir, base))
	case ModeCompress:
		switch {
		case filepath.Dir(absSrc) == absDir:
			asset = Asset{Name: base, Path: absSrc, Method: InPlace, Bytes: info.Size()}
		case sequence.IsGzip(base):
			asset, err = s.link(absSrc, info, filepath.Join(absDir, base))
		default:
			asset, err = s.Compress(absSrc, filepath.Join(absDir, CompressedName(base)))
		}
	default:
		return Asset{}, errors.Errorf(opStage, errors.KindConfig, "unknown staging mode %d", mode)
	}
	if err != nil {
		return Asset{}, err
	}

	s.logger.Debug("staged file",
		zap.String("source", absSrc),
		zap.String("name", asset.Name),
		zap.String("method", string(asset.Method)),
		zap.String("size", humanize.Bytes(uint64(asset.Bytes))))
	return asset, nil
}

func (s *Stager) copyInto(src string, info os.FileInfo, dst string) (Asset, error) {
	name := filepath.Base(dst)
	if src == dst || sameFile(info, dst) {
		return Asset{Name: name, Path: dst, Method: InPlace, Bytes: info.Size()}, nil
	}
	if err := s.writeAtomic(dst, func(w io.Writer) error {
		return s.stream(w, src)
	}); err != nil {
		return Asset{}, err
	}
	return Asset{Name: name, Path: dst, Method: Copied, Bytes: info.Size()}, nil
}

// Compress gzip-streams src into dst unconditionally, replacing dst.
func (s *Stager) Compress(src, dst string) (Asset, error) {
	err := s.writeAtomic(dst, func(w io.Writer) error {
		zw, err := gzip.NewWriterLevel(w, s.opts.Level)
		if err != nil {
			return err
		}
		zw.Name = filepath.Base(src)
		if err := s.stream(zw, src); err != nil {
			return err
		}
		return zw.Close()
	})
	if err != nil {
		return Asset{}, err
	}
	out, err := os.Stat(dst)
	if err != nil {
		return Asset{}, errors.E(opStage, errors.KindIO, errors.Path(dst), err)
	}
	return Asset{Name: filepath.Base(dst), Path: dst, Method: Compressed, Bytes: out.Size()}, nil
}

func (s *Stager) link(src string, info os.FileInfo, dst string) (Asset, error) {
	asset := Asset{Name: filepath.Base(dst), Path: dst, Method: Linked, Bytes: info.Size()}

	if existing, err := os.Lstat(dst); err == nil {
		if s.alreadyLinked(src, info, dst, existing) {
			asset.Method = Unchanged
			return asset, nil
		}
		if err := os.Remove(dst); err != nil {
			return Asset{}, errors.E(opStage, errors.KindIO, errors.Path(dst), err)
		}
	}

	if s.opts.Link == LinkSymbolic {
		if err := os.Symlink(src, dst); err != nil {
			return Asset{}, errors.E(opStage, errors.KindIO, errors.Path(dst), "symlink failed", err)
		}
		return asset, nil
	}

	err := os.Link(src, dst)
	if err == nil {
		return asset, nil
	}
	if !stderrors.Is(err, syscall.EXDEV) {
		return Asset{}, errors.E(opStage, errors.KindIO, errors.Path(dst), "hard link failed", err)
	}
	s.logger.Warn("hard link crosses filesystems, copying instead",
		zap.String("source", src), zap.String("destination", dst))
	copied, err := s.copyInto(src, info, dst)
	if err != nil {
		return Asset{}, err
	}
	return copied, nil
}

func (s *Stager) alreadyLinked(src string, srcInfo os.FileInfo, dst string, existing os.FileInfo) bool {
	if existing.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(dst)
		return err == nil && target == src
	}
	return os.SameFile(srcInfo, existing)
}

// stream copies src into w through a buffer of the configured size.
func (s *Stager) stream(w io.Writer, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	buf := make([]byte, s.opts.BufferSize)
	// Hide ReaderFrom/WriterTo so the fixed buffer is the only one used.
	_, err = io.CopyBuffer(struct{ io.Writer }{w}, struct{ io.Reader }{in}, buf)
	return err
}

// writeAtomic writes through a temp file in dst's directory and renames it
// over dst, so an interrupted run never leaves a truncated asset behind.
func (s *Stager) writeAtomic(dst string, fill func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".enasub-*.tmp")
	if err != nil {
		return errors.E(opStage, errors.KindIO, errors.Path(dst), err)
	}
	tmpName := tmp.Name()

	if err := fill(tmp); err != nil {
		errors.IgnoreError(tmp.Close(), "cleanup after failed write")
		errors.IgnoreError(os.Remove(tmpName), "cleanup after failed write")
		return errors.E(opStage, errors.KindIO, errors.Path(dst), err)
	}
	if err := tmp.Close(); err != nil {
		errors.IgnoreError(os.Remove(tmpName), "cleanup after failed close")
		return errors.E(opStage, errors.KindIO, errors.Path(dst), err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		errors.IgnoreError(os.Remove(tmpName), "cleanup after failed chmod")
		return errors.E(opStage, errors.KindIO, errors.Path(dst), err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		errors.IgnoreError(os.Remove(tmpName), "cleanup after failed rename")
		return errors.E(opStage, errors.KindIO, errors.Path(dst), err)
	}
	return nil
}

func sameFile(info os.FileInfo, path string) bool {
	other, err := os.Stat(path)
	return err == nil && os.SameFile(info, other)
}
