package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownGlobalKeys are the valid top-level keys in the config file.
var knownGlobalKeys = map[string]bool{
	"data_dir": true, "db_path": true, "credentials_file": true,
	"page_size": true, "max_depth": true,
	"log_level": true, "log_format": true, "metrics_addr": true,
	"schedule_weekday": true, "schedule_time": true,
	"roots": true,
}

// knownRootKeys are the valid keys inside a [[roots]] table.
var knownRootKeys = map[string]bool{
	"key": true, "id": true, "label": true,
}

var (
	knownGlobalKeysList = sortedKeys(knownGlobalKeys)
	knownRootKeysList   = sortedKeys(knownRootKeys)
)

// sortedKeys returns the keys of m in sorted order, so suggestions are
// deterministic when two candidates have the same edit distance.
func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	var errs []error

	for _, key := range md.Undecoded() {
		if err := buildKeyError(key.String()); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// buildKeyError creates a descriptive error for an unknown key, optionally
// suggesting the closest known key.
func buildKeyError(keyStr string) error {
	parts := strings.SplitN(keyStr, ".", 2)

	if len(parts) == 2 && parts[0] == "roots" {
		leaf := parts[1]
		if knownRootKeys[leaf] {
			return nil
		}

		if suggestion := closestMatch(leaf, knownRootKeysList); suggestion != "" {
			return fmt.Errorf("unknown key %q in [[roots]], did you mean %q?", leaf, suggestion)
		}

		return fmt.Errorf("unknown key %q in [[roots]]", leaf)
	}

	fieldName := parts[0]

	if suggestion := closestMatch(fieldName, knownGlobalKeysList); suggestion != "" {
		return fmt.Errorf("unknown config key %q, did you mean %q?", fieldName, suggestion)
	}

	return fmt.Errorf("unknown config key %q", fieldName)
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(unknown, k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
