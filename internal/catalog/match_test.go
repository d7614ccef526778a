package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	require.Equal(t, []string{"Flux", "Core", "Wire", "1.2mm"}, Tokenize("  Flux Core\tWire  1.2mm "))
	require.Equal(t, []string{"Mask", "A"}, Tokenize("Mask A mask"))
	require.Nil(t, Tokenize("   "))
}

func TestContainsAllTokens(t *testing.T) {
	cases := []struct {
		name   string
		label  string
		target string
		want   bool
	}{
		{name: "order independent and case insensitive", label: "Welding Mask Pro", target: "PRO Welding Mask X200", want: true},
		{name: "partial substrings match", label: "Weld Mas", target: "Welding Mask", want: true},
		{name: "missing token", label: "Welding Mask Pro", target: "Welding Mask X200", want: false},
		{name: "cyrillic folding", label: "маска сварщика", target: "МАСКА СВАРЩИКА Хамелеон", want: true},
		{name: "no tokens never match", label: "", target: "anything", want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ContainsAllTokens(tc.target, Tokenize(tc.label)))
		})
	}
}

func TestLikePatternsEscapeWildcards(t *testing.T) {
	require.Equal(t, []string{`%100\%%`, `%a\_b%`, `%c\\d%`}, likePatterns([]string{"100%", "a_b", `c\d`}))
}
