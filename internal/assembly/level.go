// Package assembly resolves the declared granularity of a genome assembly
// and the manifest fields each granularity requires.
package assembly

import (
	"strconv"
	"strings"

	"github.com/nishad/enasub/internal/errors"
)

// Level is the granularity of a submitted assembly.
type Level int

const (
	LevelChromosome Level = iota
	LevelScaffold
	LevelContig
)

func (l Level) String() string {
	switch l {
	case LevelContig:
		return "contig"
	case LevelScaffold:
		return "scaffold"
	default:
		return "chromosome"
	}
}

var synonyms = map[string]Level{
	"contig":      LevelContig,
	"contigs":     LevelContig,
	"ctg":         LevelContig,
	"scaffold":    LevelScaffold,
	"scaffolds":   LevelScaffold,
	"scf":         LevelScaffold,
	"chromosome":  LevelChromosome,
	"chromosomes": LevelChromosome,
	"chr":         LevelChromosome,
	"chrom":       LevelChromosome,
	"organellar":  LevelChromosome,
}

// ParseLevel normalizes free text such as "Chrom" or "scf".
func ParseLevel(text string) (Level, error) {
	if l, ok := synonyms[strings.ToLower(strings.TrimSpace(text))]; ok {
		return l, nil
	}
	return LevelChromosome, errors.Errorf("assembly.level", errors.KindValidation,
		"unknown assembly level %q (expected contig, scaffold or chromosome)", text)
}

// Chromosome-list defaults. They describe a plastid genome, the case the
// packaging tool was first written for; override them per row with
// CHR_NAME, CHR_TYPE and CHR_LOCATION.
const (
	DefaultChromosomeName     = "1"
	DefaultChromosomeType     = "Circular-Chromosome"
	DefaultChromosomeLocation = "Plastid"
)

// Placement is the resolved level together with the fields valid for it.
// It is one of Contig, Scaffold or Chromosome.
type Placement interface {
	Level() Level
	placement()
}

// Contig carries no extra manifest fields.
type Contig struct{}

// Scaffold carries either an AGP file or a minimum gap length.
type Scaffold struct {
	AGP          string // source path; empty when MinGapLength applies
	MinGapLength int
}

// Chromosome carries the chromosome-list attributes for the sequence.
type Chromosome struct {
	Name     string
	Type     string
	Location string
}

func (Contig) Level() Level     { return LevelContig }
func (Scaffold) Level() Level   { return LevelScaffold }
func (Chromosome) Level() Level { return LevelChromosome }

func (Contig) placement()     {}
func (Scaffold) placement()   {}
func (Chromosome) placement() {}

// Inputs are the row cells and pipeline defaults a placement is derived
// from. Empty strings mean the cell is missing.
type Inputs struct {
	Level        string
	DefaultLevel string
	AGP          string
	MinGapLength string
	// DefaultMinGapLength applies when the row has none; 0 means unset.
	DefaultMinGapLength int
	ChrName             string
	ChrType             string
	ChrLocation         string
}

// Resolve derives the placement for one row. The row's level wins over
// the default level, and chromosome applies when neither is given.
func Resolve(in Inputs) (Placement, error) {
	level := LevelChromosome
	switch {
	case in.Level != "":
		l, err := ParseLevel(in.Level)
		if err != nil {
			return nil, err
		}
		level = l
	case in.DefaultLevel != "":
		l, err := ParseLevel(in.DefaultLevel)
		if err != nil {
			return nil, errors.WrapMsg("assembly.resolve", "default level", err)
		}
		level = l
	}

	switch level {
	case LevelContig:
		return Contig{}, nil
	case LevelScaffold:
		if in.AGP != "" {
			return Scaffold{AGP: in.AGP}, nil
		}
		gap, err := minGapLength(in)
		if err != nil {
			return nil, err
		}
		return Scaffold{MinGapLength: gap}, nil
	default:
		return Chromosome{
			Name:     orDefault(in.ChrName, DefaultChromosomeName),
			Type:     orDefault(in.ChrType, DefaultChromosomeType),
			Location: orDefault(in.ChrLocation, DefaultChromosomeLocation),
		}, nil
	}
}

func minGapLength(in Inputs) (int, error) {
	if in.MinGapLength == "" {
		if in.DefaultMinGapLength > 0 {
			return in.DefaultMinGapLength, nil
		}
		return 0, errors.Errorf("assembly.resolve", errors.KindValidation,
			"scaffold level needs an AGP file or MINGAPLENGTH (row or default)")
	}
	// Spreadsheets hand integers back as "100" or "100.0".
	f, err := strconv.ParseFloat(in.MinGapLength, 64)
	if err != nil || f != float64(int(f)) || f < 1 {
		return 0, errors.Errorf("assembly.resolve", errors.KindValidation,
			"MINGAPLENGTH must be a positive integer, got %q", in.MinGapLength)
	}
	return int(f), nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
