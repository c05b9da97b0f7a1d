package entity

import "strings"

// namesSimilar reports whether two entity names are close enough to be
// treated as the same entity.
//
// Precedence: exact lowercase match, then substring containment when the
// shorter name is at least 70% of the longer one's length, then a
// normalized Levenshtein distance below 0.3.
func namesSimilar(name1, name2 string) bool {
	name1 = strings.ToLower(name1)
	name2 = strings.ToLower(name2)

	if name1 == name2 {
		return true
	}

	if strings.Contains(name1, name2) || strings.Contains(name2, name1) {
		longer, shorter := len(name1), len(name2)
		if shorter > longer {
			longer, shorter = shorter, longer
		}
		return float64(shorter)/float64(longer) >= 0.7
	}

	distance := levenshteinDistance(name1, name2)
	longer := len(name1)
	if len(name2) > longer {
		longer = len(name2)
	}

	return float64(distance)/float64(longer) < 0.3
}

// levenshteinDistance calculates the edit distance between two strings.
func levenshteinDistance(s1, s2 string) int {
	s1 = strings.ToLower(s1)
	s2 = strings.ToLower(s2)

	d := make([][]int, len(s1)+1)
	for i := range d {
		d[i] = make([]int, len(s2)+1)
		d[i][0] = i
	}
	for j := range d[0] {
		d[0][j] = j
	}

	for j := 1; j <= len(s2); j++ {
		for i := 1; i <= len(s1); i++ {
			if s1[i-1] == s2[j-1] {
				d[i][j] = d[i-1][j-1]
				continue
			}
			deletion := d[i-1][j] + 1
			insertion := d[i][j-1] + 1
			substitution := d[i-1][j-1] + 1

			best := deletion
			if insertion < best {
				best = insertion
			}
			if substitution < best {
				best = substitution
			}
			d[i][j] = best
		}
	}

	return d[len(s1)][len(s2)]
}
