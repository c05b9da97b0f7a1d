package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNamesSimilar(t *testing.T) {
	cases := []struct {
		name1, name2 string
		similar      bool
	}{
		{"Sarah Johnson", "sarah johnson", true},
		{"Sara Johnson", "Sarah Johnson", true},
		{"Visual Studio", "Visual Studio Code", true},
		{"Sarah Johnson", "Mike Peters", false},
		{"Go", "Gopher", false},
		{"Berlin", "Dublin", false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.similar, namesSimilar(tc.name1, tc.name2),
			"namesSimilar(%q, %q)", tc.name1, tc.name2)
	}
}

func TestLevenshteinDistance(t *testing.T) {
	assert.Equal(t, 0, levenshteinDistance("kitten", "kitten"))
	assert.Equal(t, 3, levenshteinDistance("kitten", "sitting"))
	assert.Equal(t, 1, levenshteinDistance("sara johnson", "sarah johnson"))
	assert.Equal(t, 5, levenshteinDistance("", "hello"))
	assert.Equal(t, 1, levenshteinDistance("Case", "case "))
}
