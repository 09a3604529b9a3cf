// Package samples maps declared sample identifiers to unique output
// directories within one packaging run.
package samples

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nishad/enasub/internal/errors"
)

// Allocator hands out one directory per row. The first row naming a sample
// gets the identifier verbatim, later rows get <id>_2, <id>_3, ... in order.
// A candidate already handed out in the run, such as a literal "A_2" after
// two "A" rows, is skipped for the next free suffix, so no two rows share a
// directory. An Allocator is scoped to a single run and is not safe for
// concurrent use.
type Allocator struct {
	root   string
	counts map[string]int
	issued map[string]bool
}

// NewAllocator returns an allocator placing directories under root.
func NewAllocator(root string) *Allocator {
	return &Allocator{
		root:   root,
		counts: make(map[string]int),
		issued: make(map[string]bool),
	}
}

// Root returns the submission directory the allocator writes into.
func (a *Allocator) Root() string {
	return a.root
}

// Name records one more occurrence of id and returns its directory name.
func (a *Allocator) Name(id string) string {
	for {
		a.counts[id]++
		name := id
		if n := a.counts[id]; n > 1 {
			name = fmt.Sprintf("%s_%d", id, n)
		}
		if !a.issued[name] {
			a.issued[name] = true
			return name
		}
	}
}

// Allocate names the next directory for id and creates it, along with the
// submission root, if absent. It returns the directory path.
func (a *Allocator) Allocate(id string) (string, error) {
	if err := CheckID(id); err != nil {
		return "", err
	}
	dir := filepath.Join(a.root, a.Name(id))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.E(errors.Op("samples.allocate"), errors.KindIO, errors.Path(dir), err)
	}
	return dir, nil
}

// CheckID rejects identifiers that cannot be used as a single path element.
func CheckID(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return errors.Errorf("samples.id", errors.KindValidation, "sample identifier is empty")
	case id == "." || id == "..":
		return errors.Errorf("samples.id", errors.KindValidation, "sample identifier %q is not a valid directory name", id)
	case strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, 0):
		return errors.Errorf("samples.id", errors.KindValidation, "sample identifier %q contains a path separator", id)
	}
	return nil
}
