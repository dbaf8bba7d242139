// Package classify derives taxonomy labels from raster file paths. All
// functions are pure and total: they never touch the filesystem and never
// fail, returning the exclude/unknown fallbacks instead.
package classify

import (
	"path/filepath"
	"strings"

	"github.com/jobrunner/stratum/internal/domain"
)

// Classification is the full set of labels derived from one path.
type Classification struct {
	DataType      domain.DataType
	Domain        string
	Dimension     domain.Dimension
	CanonicalName string
}

// Classifier evaluates the ordered rule lists of a Ruleset.
type Classifier struct {
	rules Ruleset
}

// New creates a classifier for the given ruleset.
func New(rules Ruleset) *Classifier {
	return &Classifier{rules: rules}
}

// Default creates a classifier with the built-in ruleset.
func Default() *Classifier {
	return New(DefaultRuleset())
}

// Classify derives all labels for one path.
func (c *Classifier) Classify(path string) Classification {
	dt := c.DataType(path)
	return Classification{
		DataType:      dt,
		Domain:        c.Domain(path),
		Dimension:     c.Dimension(dt, filepath.Base(path)),
		CanonicalName: c.CanonicalName(path),
	}
}

// DataType classifies a file by its role in the dataset. Indicator
// directories win first, then the final-score filename pattern, then
// aggregate suffixes outside excluded directories. Everything else is
// excluded from processing.
func (c *Classifier) DataType(path string) domain.DataType {
	segments := splitSegments(path)
	name := filepath.Base(path)

	if c.indicatorIndex(segments) >= 0 {
		return domain.DataTypeIndicator
	}
	if c.rules.FinalScorePattern.MatchString(name) {
		return domain.DataTypeFinalScore
	}
	if c.matchesAggregate(name) && !c.hasExcludedSegment(segments) {
		return domain.DataTypeAggregate
	}
	return domain.DataTypeExclude
}

// Domain extracts the taxonomy domain from a path using a three-tier
// fallback: the segment preceding an indicator directory, then any path
// segment naming a domain, then a domain substring in the filename itself.
// Tier order matters: the indicator parent wins even when another domain
// name appears elsewhere in the path.
func (c *Classifier) Domain(path string) string {
	segments := splitSegments(path)

	if i := c.indicatorIndex(segments); i > 0 {
		return segments[i-1]
	}

	for _, seg := range segments[:max(len(segments)-1, 0)] {
		for _, d := range c.rules.Domains {
			if seg == d {
				return d
			}
		}
	}

	name := strings.ToLower(filepath.Base(path))
	for _, d := range c.rules.Domains {
		if strings.Contains(name, d) {
			return d
		}
	}

	return domain.DomainUnknown
}

// Dimension derives the layer dimension from the filename. Indicator and
// aggregate files use separate ordered rule lists; other types carry no
// dimension.
func (c *Classifier) Dimension(dt domain.DataType, filename string) domain.Dimension {
	var rules []DimensionRule
	switch dt {
	case domain.DataTypeIndicator:
		rules = c.rules.IndicatorRules
	case domain.DataTypeAggregate:
		rules = c.rules.AggregateRules
	default:
		return domain.DimensionNone
	}

	for _, r := range rules {
		if r.Pattern.MatchString(filename) {
			return r.Result
		}
	}
	return domain.DimensionNone
}

// CanonicalName returns the collision-safe output basename: the source
// basename with its extension normalized to .tif, suffixed when the file
// comes from an unmasked variant directory so it cannot collide with the
// masked layer of the same name.
func (c *Classifier) CanonicalName(path string) string {
	name := filepath.Base(path)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	if c.isNoMaskPath(path) && !strings.HasSuffix(stem, c.rules.NoMaskSuffix) {
		stem += c.rules.NoMaskSuffix
	}
	return stem + ".tif"
}

// indicatorIndex returns the index of the first indicator segment, or -1.
func (c *Classifier) indicatorIndex(segments []string) int {
	for i, seg := range segments {
		for _, ind := range c.rules.IndicatorSegments {
			if seg == ind {
				return i
			}
		}
	}
	return -1
}

// matchesAggregate reports whether the filename carries an aggregate suffix.
func (c *Classifier) matchesAggregate(filename string) bool {
	for _, r := range c.rules.AggregateRules {
		if r.Pattern.MatchString(filename) {
			return true
		}
	}
	return false
}

// hasExcludedSegment reports whether any directory segment is excluded.
func (c *Classifier) hasExcludedSegment(segments []string) bool {
	for _, seg := range segments {
		for _, ex := range c.rules.ExcludedSegments {
			if seg == ex {
				return true
			}
		}
		for _, prefix := range c.rules.ExcludedPrefixes {
			if strings.HasPrefix(seg, prefix) {
				return true
			}
		}
	}
	return false
}

// isNoMaskPath reports whether the path lies under a no-mask variant
// directory.
func (c *Classifier) isNoMaskPath(path string) bool {
	for _, seg := range splitSegments(path) {
		if strings.Contains(seg, "no_mask") {
			return true
		}
	}
	return false
}

// splitSegments splits a cleaned path into its non-empty segments. The
// final segment is the filename.
func splitSegments(path string) []string {
	clean := filepath.ToSlash(filepath.Clean(path))
	parts := strings.Split(clean, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" && p != "." {
			out = append(out, p)
		}
	}
	return out
}
