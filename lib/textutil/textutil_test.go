package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeFlightNumber(t *testing.T) {
	table := []struct {
		input    string
		expected string
	}{
		{input: "CI 5", expected: "CI5"},
		{input: "ci5", expected: "CI5"},
		{input: " Ci 005\t", expected: "CI005"},
		{input: "", expected: ""},
	}
	for _, row := range table {
		require.Equal(t, row.expected, NormalizeFlightNumber(row.input))
	}
}

func TestCollapseSpace(t *testing.T) {
	require.Equal(t, "Taipei Taoyuan (TPE)", CollapseSpace("  Taipei\n  Taoyuan\t(TPE) "))
	require.Equal(t, "", CollapseSpace(" \n "))
}

func TestTitleCase(t *testing.T) {
	require.Equal(t, "China Airlines", TitleCase("CHINA AIRLINES"))
	require.Equal(t, "Eva Air", TitleCase("eva  air"))
	require.Equal(t, "", TitleCase("  "))
}
