package validator

import (
	"fmt"
	"strings"
)

// Controlled vocabularies of the read archive. Values outside them are
// reported but not rejected; the submission client has the final word.
var (
	libraryStrategies = []string{
		"WGS", "WGA", "WXS", "RNA-Seq", "ssRNA-seq", "miRNA-Seq",
		"ncRNA-Seq", "FL-cDNA", "EST", "Hi-C", "ATAC-seq", "WCS",
		"RAD-Seq", "CLONE", "POOLCLONE", "AMPLICON", "CLONEEND",
		"FINISHING", "ChIP-Seq", "MNase-Seq", "DNase-Hypersensitivity",
		"Bisulfite-Seq", "CTS", "MRE-Seq", "MeDIP-Seq", "MBD-Seq",
		"Tn-Seq", "VALIDATION", "FAIRE-seq", "SELEX", "RIP-Seq",
		"ChIA-PET", "Synthetic-Long-Read", "Targeted-Capture",
		"Tethered Chromatin Conformation Capture", "OTHER",
	}

	librarySources = []string{
		"GENOMIC", "GENOMIC SINGLE CELL", "TRANSCRIPTOMIC",
		"TRANSCRIPTOMIC SINGLE CELL", "METAGENOMIC",
		"METATRANSCRIPTOMIC", "SYNTHETIC", "VIRAL RNA", "OTHER",
	}

	librarySelections = []string{
		"RANDOM", "PCR", "RANDOM PCR", "RT-PCR", "HMPR", "MF",
		"CF-S", "CF-M", "CF-H", "CF-T", "MDA", "MSLL", "cDNA",
		"cDNA_randomPriming", "cDNA_oligo_dT", "PolyA", "Oligo-dT",
		"Inverse rRNA", "Inverse rRNA selection", "ChIP", "ChIP-Seq",
		"MNase", "DNase", "Hybrid Selection", "Reduced Representation",
		"Restriction Digest", "5-methylcytidine antibody",
		"MBD2 protein methyl-CpG binding domain", "CAGE", "RACE",
		"size fractionation", "Padlock probes capture method",
		"other", "unspecified",
	}
)

func vocabulary(rec ReadsRecord) []Warning {
	var out []Warning
	check := func(field, value string, allowed []string) {
		if value == "" || containsFold(allowed, value) {
			return
		}
		out = append(out, Warning{
			Row:     rec.Row,
			Field:   field,
			Message: fmt.Sprintf("%s %q is not in the standard list", field, value),
		})
	}
	check(ColLibraryStrategy, rec.LibraryStrategy, libraryStrategies)
	check(ColLibrarySource, rec.LibrarySource, librarySources)
	check(ColLibrarySelection, rec.LibrarySelection, librarySelections)
	return out
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
