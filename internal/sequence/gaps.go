package sequence

import (
	"io"

	"github.com/nishad/enasub/internal/errors"
)

// HasGapRunFile reports whether the FASTA file at path contains a run of at
// least threshold ambiguous bases.
func HasGapRunFile(path string, threshold int) (bool, error) {
	rc, err := Open(path)
	if err != nil {
		return false, err
	}
	defer rc.Close()

	found, err := HasGapRun(rc, threshold)
	if err != nil {
		return false, errors.E(errors.Op("sequence.gaps"), errors.KindIO, errors.Path(path), err)
	}
	return found, nil
}

// HasGapRun reports whether r holds a run of at least threshold N bases.
// The run length carries across line breaks, so a gap wrapped over two
// lines is still one run; a header line ends the current run.
func HasGapRun(r io.Reader, threshold int) (bool, error) {
	if threshold < 1 {
		return false, errors.Errorf("sequence.gaps", errors.KindConfig, "gap threshold must be at least 1, got %d", threshold)
	}

	var (
		run      int
		inHeader bool
		found    bool
	)
	err := eachFragment(r, func(frag []byte, start, end bool) bool {
		if start {
			inHeader = isFastaHeader(frag)
			if inHeader {
				run = 0
			}
		}
		if inHeader {
			return false
		}
		for _, b := range frag {
			switch b {
			case 'N', 'n':
				run++
				if run >= threshold {
					found = true
					return true
				}
			case ' ', '\t', '\r':
			default:
				run = 0
			}
		}
		return false
	})
	if err != nil {
		return false, err
	}
	return found, nil
}
