// Package phylo turns collected hit sequences into a phylogenetic tree:
// label normalization, pairwise distances, neighbor joining and newick
// serialization.
package phylo

import (
	"regexp"
	"strings"
)

// speciesRules are tried in priority order; the first pattern that matches
// wins and no later rule is consulted. Each pattern captures the span to
// remove from the description as group 1 and the species name as group 2.
var speciesRules = []*regexp.Regexp{
	// Bracketed organism, the usual NCBI defline form: "... [Homo sapiens]".
	regexp.MustCompile(`(\[(.+?)\])`),
	// Predicted protein deflines: "PREDICTED: Mus musculus ...".
	regexp.MustCompile(`(PREDICTED: (\w+ \w+))`),
	// Two words right after the leading accession token.
	regexp.MustCompile(`^[^\s]+( (\w+ \w+))`),
}

var (
	// ordIDPattern strips database-ordinal tokens such as "gnl|BL_ORD_ID|42".
	ordIDPattern = regexp.MustCompile(`(?i)\s*[^\s]*\|BL_ORD_ID\|\d+\s*`)

	// speciesSuffix drops a parenthetical tail inside a captured species,
	// e.g. "Homo sapiens (human)" -> "Homo sapiens".
	speciesSuffix = regexp.MustCompile(`\s\(.*\)`)

	// swissProtGene captures the entry name of a SwissProt-style id.
	swissProtGene = regexp.MustCompile(`sp\|[^\s]*\|([\w_]+)`)

	// parenGene falls back to the first parenthesized word.
	parenGene = regexp.MustCompile(`\((\w+)\)`)

	forbiddenChars = regexp.MustCompile(`[\s\[\](),;:]`)
	underscoreRuns = regexp.MustCompile(`_+`)
)

// CleanLabel turns a raw hit description into a label safe for the newick
// grammar. It extracts a species and a gene token when the description
// carries one, composes them with the leading accession token, and maps
// every character newick reserves to '_'.
func CleanLabel(desc string) string {
	desc = ordIDPattern.ReplaceAllString(desc, "")

	species, desc := extractSpecies(desc)
	species = speciesSuffix.ReplaceAllString(species, "")
	gene := extractGene(desc)

	out := firstToken(desc) + gene + species
	out = forbiddenChars.ReplaceAllString(out, "_")
	out = underscoreRuns.ReplaceAllString(out, "_")
	return strings.TrimSuffix(out, "_")
}

// extractSpecies applies the species rules first-match-wins. On a match it
// returns "_<species>" and the description with every occurrence of the
// matched span removed.
func extractSpecies(desc string) (string, string) {
	for _, rule := range speciesRules {
		m := rule.FindStringSubmatch(desc)
		if m == nil {
			continue
		}
		return "_" + m[2], strings.ReplaceAll(desc, m[1], "")
	}
	return "", desc
}

func extractGene(desc string) string {
	if m := swissProtGene.FindStringSubmatch(desc); m != nil {
		return m[1]
	}
	if m := parenGene.FindStringSubmatch(desc); m != nil {
		return "_" + m[1]
	}
	return ""
}

func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
