// Package reads infers the raw-read file type of a sequencing-run row from
// the files it references.
package reads

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nishad/enasub/internal/errors"
)

// FileType is the manifest field a read file is declared under.
type FileType int

const (
	BAM FileType = iota + 1
	CRAM
	FASTQ
)

func (f FileType) String() string {
	switch f {
	case BAM:
		return "BAM"
	case CRAM:
		return "CRAM"
	case FASTQ:
		return "FASTQ"
	}
	return fmt.Sprintf("FileType(%d)", int(f))
}

var suffixes = []struct {
	suffix string
	kind   FileType
}{
	{".bam", BAM},
	{".bam.gz", BAM},
	{".cram", CRAM},
	{".cram.gz", CRAM},
	{".fastq", FASTQ},
	{".fq", FASTQ},
	{".fastq.gz", FASTQ},
	{".fq.gz", FASTQ},
}

// IsFileColumn reports whether an upper-cased column name holds read files:
// BAM, CRAM or anything starting with FASTQ (FASTQ1, FASTQ_R2, ...).
func IsFileColumn(upper string) bool {
	return upper == "BAM" || upper == "CRAM" || strings.HasPrefix(upper, "FASTQ")
}

// Detect returns the file type implied by path's extension.
func Detect(path string) (FileType, error) {
	low := strings.ToLower(path)
	for _, s := range suffixes {
		if strings.HasSuffix(low, s.suffix) {
			return s.kind, nil
		}
	}
	return 0, errors.Errorf("reads.detect", errors.KindValidation, "unrecognized file extension in %q", path)
}

// FileSet is the files of one row, all of a single type.
type FileSet struct {
	Type  FileType
	Files []string
}

// Resolve checks that files share one type and that the count suits it:
// exactly one BAM or CRAM, one or more FASTQ.
func Resolve(files []string) (FileSet, error) {
	if len(files) == 0 {
		return FileSet{}, errors.Errorf("reads.resolve", errors.KindValidation, "no read files given")
	}

	types := map[FileType]bool{}
	var kind FileType
	for _, f := range files {
		k, err := Detect(f)
		if err != nil {
			return FileSet{}, err
		}
		types[k] = true
		kind = k
	}
	if len(types) != 1 {
		names := make([]string, 0, len(types))
		for k := range types {
			names = append(names, k.String())
		}
		sort.Strings(names)
		return FileSet{}, errors.Errorf("reads.resolve", errors.KindValidation,
			"mixed file types in one row: %s", strings.Join(names, ", "))
	}
	if (kind == BAM || kind == CRAM) && len(files) != 1 {
		return FileSet{}, errors.Errorf("reads.resolve", errors.KindValidation,
			"%s requires exactly one file entry, got %d", kind, len(files))
	}
	return FileSet{Type: kind, Files: append([]string(nil), files...)}, nil
}
