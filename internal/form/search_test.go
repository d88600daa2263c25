package form

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchDirectory(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "formgrid_search_test")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(tempDir, name), []byte(content), 0o644))
	}
	write("plot_a.json", `{"Blocks": []}`)
	write("plot_b.json", `{"Blocks": []}`)
	write("notes.txt", "not a form")
	require.NoError(t, os.Mkdir(filepath.Join(tempDir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "nested", "plot_c.json"), []byte("{}"), 0o644))

	search := NewSearch(1024 * 1024)

	t.Run("lists json files recursively", func(t *testing.T) {
		result, err := search.SearchDirectory(SearchDirectoryRequest{Directory: tempDir})
		require.NoError(t, err)
		assert.Equal(t, 3, result.TotalCount)
		// Sorted by path, so the top-level files precede the nested one.
		assert.Equal(t, "nested", filepath.Base(filepath.Dir(result.Files[0].Path)))
	})

	t.Run("query filters by name", func(t *testing.T) {
		result, err := search.SearchDirectory(SearchDirectoryRequest{Directory: tempDir, Query: "plot_b"})
		require.NoError(t, err)
		require.Equal(t, 1, result.TotalCount)
		assert.Equal(t, "plot_b.json", result.Files[0].Name)
	})

	t.Run("empty directory argument rejected", func(t *testing.T) {
		_, err := search.SearchDirectory(SearchDirectoryRequest{})
		assert.Error(t, err)
	})

	t.Run("missing directory rejected", func(t *testing.T) {
		_, err := search.SearchDirectory(SearchDirectoryRequest{Directory: "/no/such/dir"})
		assert.Error(t, err)
	})
}

func TestSearchDirectory_SizeLimit(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "formgrid_search_size_test")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	big := make([]byte, 2048)
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "big.json"), big, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "small.json"), []byte("{}"), 0o644))

	search := NewSearch(1024)

	result, err := search.SearchDirectory(SearchDirectoryRequest{Directory: tempDir})
	require.NoError(t, err)
	require.Equal(t, 1, result.TotalCount)
	assert.Equal(t, "small.json", result.Files[0].Name)
}

func TestMatchesQuery(t *testing.T) {
	assert.True(t, matchesQuery("plot_survey_2024.json", "survey"))
	assert.True(t, matchesQuery("plot_survey_2024.json", "plot 2024"))
	assert.False(t, matchesQuery("plot_survey_2024.json", "plot 2025"))
}
