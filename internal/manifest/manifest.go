// Package manifest builds and writes the per-sample submission descriptor:
// one FIELD<TAB>VALUE line per field, in a fixed order.
package manifest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nishad/enasub/internal/assembly"
	"github.com/nishad/enasub/internal/errors"
	"github.com/nishad/enasub/internal/validator"
)

// FileName is the descriptor written into every sample directory.
const FileName = "manifest.txt"

// ChromosomeListName is the uncompressed chromosome list file name.
const ChromosomeListName = "chr_list.txt"

// Field is one manifest line.
type Field struct {
	Name  string
	Value string
}

// Manifest is an ordered list of fields. A name appears at most once,
// except the data field added through AddData.
type Manifest struct {
	fields []Field
	seen   map[string]bool
	data   string
}

// New returns an empty manifest.
func New() *Manifest {
	return &Manifest{seen: make(map[string]bool)}
}

// Add appends a field, rejecting a name already present.
func (m *Manifest) Add(name, value string) error {
	if m.seen[name] {
		return errors.Errorf("manifest.add", errors.KindValidation, "duplicate manifest field %s", name)
	}
	m.seen[name] = true
	m.fields = append(m.fields, Field{Name: name, Value: value})
	return nil
}

// AddAll adds fields in order and stops at the first rejected one.
func (m *Manifest) AddAll(fields ...Field) error {
	for _, f := range fields {
		if err := m.Add(f.Name, f.Value); err != nil {
			return err
		}
	}
	return nil
}

// AddData appends a data file line. The same data field may repeat, as
// with the two files of a paired FASTQ set; no other field may reuse it.
func (m *Manifest) AddData(name, value string) error {
	if m.data != name && m.seen[name] {
		return errors.Errorf("manifest.add", errors.KindValidation, "duplicate manifest field %s", name)
	}
	if m.data != "" && m.data != name {
		return errors.Errorf("manifest.add", errors.KindValidation,
			"manifest already declares %s data, cannot add %s", m.data, name)
	}
	m.data = name
	m.seen[name] = true
	m.fields = append(m.fields, Field{Name: name, Value: value})
	return nil
}

// Fields returns the fields in write order.
func (m *Manifest) Fields() []Field {
	return append([]Field(nil), m.fields...)
}

// Value returns the first value recorded for name.
func (m *Manifest) Value(name string) (string, bool) {
	for _, f := range m.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// WriteTo writes the manifest lines to w.
func (m *Manifest) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for _, f := range m.fields {
		c, err := fmt.Fprintf(bw, "%s\t%s\n", f.Name, oneLine(f.Value))
		n += int64(c)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

// WriteFile writes dir/manifest.txt, replacing any previous manifest, and
// returns its path.
func (m *Manifest) WriteFile(dir string) (string, error) {
	path := filepath.Join(dir, FileName)
	f, err := os.Create(path)
	if err != nil {
		return "", errors.E(errors.Op("manifest.write"), errors.KindIO, errors.Path(path), err)
	}
	if _, err := m.WriteTo(f); err != nil {
		f.Close()
		return "", errors.E(errors.Op("manifest.write"), errors.KindIO, errors.Path(path), err)
	}
	if err := f.Close(); err != nil {
		return "", errors.E(errors.Op("manifest.write"), errors.KindIO, errors.Path(path), err)
	}
	return path, nil
}

// Values never span lines; embedded line breaks and tabs would corrupt
// the descriptor.
func oneLine(v string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t':
			return ' '
		}
		return r
	}, v)
}

// AssemblyFiles are the staged names the genome manifest refers to.
type AssemblyFiles struct {
	Data           string // staged FLATFILE or FASTA
	AGP            string // staged AGP, scaffold level only
	ChromosomeList string // compressed chromosome list, chromosome level only
}

// ForAssembly builds the genome manifest for a validated row.
func ForAssembly(rec validator.AssemblyRecord, files AssemblyFiles) (*Manifest, error) {
	m := New()
	head := []Field{
		{validator.ColStudy, rec.Study},
		{validator.ColSample, rec.Sample},
		{validator.ColRunRef, rec.RunRef},
		{validator.ColAssemblyName, rec.AssemblyName},
		{validator.ColAssemblyType, rec.AssemblyType},
		{validator.ColCoverage, rec.Coverage},
		{validator.ColProgram, rec.Program},
		{validator.ColPlatform, rec.Platform},
		{validator.ColMoleculeType, rec.MoleculeType},
	}
	if rec.Description != "" {
		head = append(head, Field{validator.ColDescription, rec.Description})
	}
	if err := m.AddAll(head...); err != nil {
		return nil, errors.E(errors.Op("manifest.assembly"), errors.KindValidation, errors.Row(rec.Row), err)
	}
	if err := m.AddData(rec.DataField, files.Data); err != nil {
		return nil, errors.E(errors.Op("manifest.assembly"), errors.KindValidation, errors.Row(rec.Row), err)
	}

	var tail Field
	switch p := rec.Placement.(type) {
	case assembly.Contig:
		return m, nil
	case assembly.Scaffold:
		if p.AGP == "" {
			tail = Field{validator.ColMinGapLength, fmt.Sprint(p.MinGapLength)}
			break
		}
		if files.AGP == "" {
			return nil, errors.RowErrorf("manifest.assembly", rec.Row, "AGP file was not staged")
		}
		tail = Field{validator.ColAGP, files.AGP}
	case assembly.Chromosome:
		if files.ChromosomeList == "" {
			return nil, errors.RowErrorf("manifest.assembly", rec.Row, "chromosome list was not written")
		}
		tail = Field{"CHROMOSOME_LIST", files.ChromosomeList}
	default:
		return nil, errors.RowErrorf("manifest.assembly", rec.Row, "unresolved assembly level")
	}
	if err := m.AddAll(tail); err != nil {
		return nil, errors.E(errors.Op("manifest.assembly"), errors.KindValidation, errors.Row(rec.Row), err)
	}
	return m, nil
}

// ForReads builds the reads manifest for a validated row. files are the
// staged names in row order.
func ForReads(rec validator.ReadsRecord, files []string) (*Manifest, error) {
	m := New()
	fields := []Field{
		{validator.ColStudy, rec.Study},
		{validator.ColSample, rec.Sample},
		{validator.ColName, rec.Name},
		{validator.ColInstrument, rec.Instrument},
		{validator.ColInsertSize, rec.InsertSize},
		{validator.ColLibraryName, rec.LibraryName},
		{validator.ColLibrarySource, rec.LibrarySource},
		{validator.ColLibrarySelection, rec.LibrarySelection},
		{validator.ColLibraryStrategy, rec.LibraryStrategy},
	}
	if rec.Description != "" {
		fields = append(fields, Field{validator.ColDescription, rec.Description})
	}
	if err := m.AddAll(fields...); err != nil {
		return nil, errors.E(errors.Op("manifest.reads"), errors.KindValidation, errors.Row(rec.Row), err)
	}
	if len(files) == 0 {
		return nil, errors.RowErrorf("manifest.reads", rec.Row, "no read files staged")
	}
	for _, name := range files {
		if err := m.AddData(rec.Files.Type.String(), name); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// WriteChromosomeList writes dir/chr_list.txt with a single entry naming
// the sequence identifier and its chromosome attributes.
func WriteChromosomeList(dir, identifier string, chr assembly.Chromosome) (string, error) {
	path := filepath.Join(dir, ChromosomeListName)
	line := strings.Join([]string{identifier, chr.Name, chr.Type, chr.Location}, "\t") + "\n"
	if err := os.WriteFile(path, []byte(line), 0644); err != nil {
		return "", errors.E(errors.Op("manifest.chromosome_list"), errors.KindIO, errors.Path(path), err)
	}
	return path, nil
}
