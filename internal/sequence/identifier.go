package sequence

import (
	"bytes"
	"io"
	"strings"

	"github.com/nishad/enasub/internal/errors"
)

// maxHeaderLen caps how much of a header or AC line is kept. Identifiers
// live in the first few tokens.
const maxHeaderLen = 4096

// placeholders are primary accession tokens used in unsubmitted EMBL
// entries; the real name follows them.
var placeholders = map[string]bool{"*": true, "XXX": true}

// FirstIdentifier returns the first sequence identifier in a FASTA or EMBL
// flatfile at path. Files ending in .gz are decompressed on the fly.
func FirstIdentifier(path string) (string, error) {
	rc, err := Open(path)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	id, ok, err := ReadIdentifier(rc)
	if err != nil {
		return "", errors.E(errors.Op("sequence.identifier"), errors.KindIO, errors.Path(path), err)
	}
	if !ok {
		return "", errors.E(errors.Op("sequence.identifier"), errors.KindParse, errors.Path(path),
			"no accession line ('AC' or '>') found")
	}
	return id, nil
}

// ReadIdentifier scans r for the first FASTA header ("> id ...") or EMBL
// accession line ("AC   id;") that yields a token.
func ReadIdentifier(r io.Reader) (string, bool, error) {
	var (
		line       []byte
		collecting bool
		id         string
	)
	err := eachFragment(r, func(frag []byte, start, end bool) bool {
		if start {
			line = line[:0]
			collecting = isFastaHeader(frag) || isAccessionLine(frag)
		}
		if !collecting {
			return false
		}
		if room := maxHeaderLen - len(line); room > 0 {
			if len(frag) > room {
				frag = frag[:room]
			}
			line = append(line, frag...)
		}
		if !end {
			return false
		}
		collecting = false
		id = parseIdentifier(line)
		return id != ""
	})
	if err != nil {
		return "", false, err
	}
	return id, id != "", nil
}

func isFastaHeader(line []byte) bool {
	return len(line) > 0 && line[0] == '>'
}

// isAccessionLine matches the two-letter EMBL tag only, so GenBank
// ACCESSION lines are not mistaken for it.
func isAccessionLine(line []byte) bool {
	if !bytes.HasPrefix(line, []byte("AC")) {
		return false
	}
	return len(line) == 2 || line[2] == ' ' || line[2] == '\t'
}

func parseIdentifier(line []byte) string {
	if isFastaHeader(line) {
		fields := strings.Fields(string(line[1:]))
		if len(fields) == 0 {
			return ""
		}
		return fields[0]
	}
	for _, tok := range strings.Fields(string(line[2:])) {
		tok = strings.TrimRight(tok, ";")
		if tok == "" || placeholders[tok] {
			continue
		}
		return tok
	}
	return ""
}
