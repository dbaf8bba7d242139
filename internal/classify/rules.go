package classify

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/jobrunner/stratum/internal/domain"
)

// DimensionRule maps a filename pattern to a layer dimension. Rules are
// evaluated in list order; the first match wins.
type DimensionRule struct {
	Pattern *regexp.Regexp
	Result  domain.Dimension
}

// Ruleset holds every ordered rule list the classifier evaluates. New
// domains or directory exclusions are additive: append to the lists instead
// of touching the classifier logic.
type Ruleset struct {
	// Domains is the enumerated taxonomy, scanned in order against path
	// segments and then against the filename.
	Domains []string

	// IndicatorSegments are directory names marking indicator layers.
	IndicatorSegments []string

	// ExcludedSegments are directory names whose contents never classify
	// as aggregates.
	ExcludedSegments []string

	// ExcludedPrefixes extend ExcludedSegments by prefix match, e.g.
	// retired "retro_" working directories.
	ExcludedPrefixes []string

	// FinalScorePattern matches filenames of the dataset-wide score layer.
	FinalScorePattern *regexp.Regexp

	// AggregateRules and IndicatorRules derive the dimension for each
	// data type, in priority order.
	AggregateRules []DimensionRule
	IndicatorRules []DimensionRule

	// NoMaskSuffix disambiguates output names of unmasked variants.
	NoMaskSuffix string
}

// DefaultRuleset returns the built-in taxonomy rules.
func DefaultRuleset() Ruleset {
	return Ruleset{
		Domains: []string{
			"air",
			"biodiversity",
			"climate",
			"economy",
			"hazards",
			"infrastructure",
			"livelihoods",
			"soil",
			"water",
		},
		IndicatorSegments: []string{"indicators", "indicators_no_mask"},
		ExcludedSegments:  []string{"indicators", "indicators_no_mask", "final_checks", "archive"},
		ExcludedPrefixes:  []string{"retro_"},
		FinalScorePattern: regexp.MustCompile(`(?i)final_?score`),
		IndicatorRules: []DimensionRule{
			{Pattern: regexp.MustCompile(`(?i)resistance`), Result: domain.DimensionResistance},
			{Pattern: regexp.MustCompile(`(?i)recovery`), Result: domain.DimensionRecovery},
			{Pattern: regexp.MustCompile(`(?i)status`), Result: domain.DimensionStatus},
		},
		AggregateRules: []DimensionRule{
			{Pattern: regexp.MustCompile(`(?i)domain_?score`), Result: domain.DimensionDomainScore},
			{Pattern: regexp.MustCompile(`(?i)resilience`), Result: domain.DimensionResilience},
			{Pattern: regexp.MustCompile(`(?i)resistance`), Result: domain.DimensionResistance},
			{Pattern: regexp.MustCompile(`(?i)status`), Result: domain.DimensionStatus},
		},
		NoMaskSuffix: "_no_mask",
	}
}

// rulesetFile is the on-disk overlay format.
type rulesetFile struct {
	Domains          []string `yaml:"domains"`
	ExcludedSegments []string `yaml:"excluded_dirs"`
	ExcludedPrefixes []string `yaml:"excluded_prefixes"`
}

// LoadRuleset reads a YAML overlay file and merges it into the default
// ruleset. The overlay is additive: it can introduce new domains and
// exclusions but cannot remove built-in ones.
func LoadRuleset(path string) (Ruleset, error) {
	rs := DefaultRuleset()

	data, err := os.ReadFile(path)
	if err != nil {
		return rs, fmt.Errorf("reading taxonomy rules: %w", err)
	}

	var overlay rulesetFile
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return rs, fmt.Errorf("parsing taxonomy rules: %w", err)
	}

	rs.Domains = appendMissing(rs.Domains, overlay.Domains)
	rs.ExcludedSegments = appendMissing(rs.ExcludedSegments, overlay.ExcludedSegments)
	rs.ExcludedPrefixes = appendMissing(rs.ExcludedPrefixes, overlay.ExcludedPrefixes)
	return rs, nil
}

// appendMissing appends the values of extra not already present in base.
func appendMissing(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base))
	for _, v := range base {
		seen[v] = struct{}{}
	}
	for _, v := range extra {
		if _, ok := seen[v]; !ok {
			base = append(base, v)
			seen[v] = struct{}{}
		}
	}
	return base
}
