package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJaccard(t *testing.T) {
	testcases := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{
			name: "identical",
			a:    "the raid starts friday",
			b:    "the raid starts friday",
			want: 1.0,
		},
		{
			name: "case-insensitive",
			a:    "Trivia Night Tuesday",
			b:    "trivia night tuesday",
			want: 1.0,
		},
		{
			name: "disjoint",
			a:    "alpha beta gamma",
			b:    "delta epsilon zeta",
			want: 0.0,
		},
		{
			name: "half-overlap",
			a:    "a b c",
			b:    "b c d",
			want: 0.5,
		},
		{
			name: "both-empty",
			a:    "",
			b:    "",
			want: 0.0,
		},
		{
			name: "one-empty",
			a:    "hello there",
			b:    "",
			want: 0.0,
		},
		{
			name: "duplicate-words-collapse",
			a:    "spam spam spam eggs",
			b:    "spam eggs",
			want: 1.0,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, jaccard(tc.a, tc.b), 1e-9)
			assert.InDelta(t, tc.want, jaccard(tc.b, tc.a), 1e-9, "jaccard must be symmetric")
		})
	}
}
