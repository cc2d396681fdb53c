package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestParseJSONBare(t *testing.T) {
	got, err := ParseJSON[sample](`{"name": "a", "count": 2}`)
	require.NoError(t, err)
	assert.Equal(t, sample{Name: "a", Count: 2}, got)
}

func TestParseJSONStripsMarkdownFences(t *testing.T) {
	got, err := ParseJSON[sample]("Here you go:\n```json\n{\"name\": \"a\", \"count\": 2}\n```\nHope that helps!")
	require.NoError(t, err)
	assert.Equal(t, "a", got.Name)
}

func TestParseJSONCarvesObjectOutOfProse(t *testing.T) {
	got, err := ParseJSON[sample](`Sure! The result is {"name": "a", "count": 2} as requested.`)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Count)
}

func TestParseJSONRejectsNonJSON(t *testing.T) {
	_, err := ParseJSON[sample]("no object here at all")
	assert.Error(t, err)

	_, err = ParseJSON[sample](`{"name": unquoted}`)
	assert.Error(t, err)
}
