package validation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ragerr "github.com/Aman-CERP/archrag/internal/errors"
)

func codeOf(t *testing.T, err error) string {
	t.Helper()
	var re *ragerr.RAGError
	require.ErrorAs(t, err, &re)
	return re.Code
}

func TestQuery(t *testing.T) {
	assert.NoError(t, Query("how does the scheduler work?"))

	err := Query("")
	require.Error(t, err)
	assert.Equal(t, ragerr.ErrCodeQueryEmpty, codeOf(t, err))

	err = Query("   \t\n")
	require.Error(t, err)
	assert.Equal(t, ragerr.ErrCodeQueryEmpty, codeOf(t, err))

	err = Query(strings.Repeat("x", MaxQueryLength+1))
	require.Error(t, err)
	assert.Equal(t, ragerr.ErrCodeQueryTooLong, codeOf(t, err))

	// Limit is counted in runes, not bytes.
	assert.NoError(t, Query(strings.Repeat("ü", MaxQueryLength)))
}

func TestTopK(t *testing.T) {
	assert.NoError(t, TopK(0))
	assert.NoError(t, TopK(10))
	assert.NoError(t, TopK(MaxTopK))

	err := TopK(-1)
	require.Error(t, err)
	assert.Equal(t, ragerr.ErrCodeInvalidInput, codeOf(t, err))

	err = TopK(MaxTopK + 1)
	require.Error(t, err)
	assert.Equal(t, ragerr.ErrCodeInvalidInput, codeOf(t, err))
}

func TestPath(t *testing.T) {
	assert.NoError(t, Path("/srv/docs"))
	assert.NoError(t, Path("docs/manual.md"))

	err := Path("")
	require.Error(t, err)
	assert.Equal(t, ragerr.ErrCodeInvalidPath, codeOf(t, err))

	err = Path("../etc/passwd")
	require.Error(t, err)
	assert.Equal(t, ragerr.ErrCodeInvalidPath, codeOf(t, err))

	err = Path("docs/../../secret")
	require.Error(t, err)
	assert.Equal(t, ragerr.ErrCodeInvalidPath, codeOf(t, err))
}

func TestDirectory(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, Directory(dir))

	err := Directory(filepath.Join(dir, "missing"))
	require.Error(t, err)
	assert.Equal(t, ragerr.ErrCodeFileNotFound, codeOf(t, err))

	file := filepath.Join(dir, "doc.md")
	require.NoError(t, os.WriteFile(file, []byte("# hi"), 0o644))
	err = Directory(file)
	require.Error(t, err)
	assert.Equal(t, ragerr.ErrCodeInvalidPath, codeOf(t, err))
}

func TestFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "doc.md")
	require.NoError(t, os.WriteFile(file, []byte("# hi"), 0o644))

	assert.NoError(t, File(file))

	err := File(filepath.Join(dir, "missing.md"))
	require.Error(t, err)
	assert.Equal(t, ragerr.ErrCodeFileNotFound, codeOf(t, err))

	err = File(dir)
	require.Error(t, err)
	assert.Equal(t, ragerr.ErrCodeInvalidPath, codeOf(t, err))
}

func TestPattern(t *testing.T) {
	assert.NoError(t, Pattern(""))
	assert.NoError(t, Pattern("*.md"))
	assert.NoError(t, Pattern("**/*.md"))
	assert.NoError(t, Pattern("**/*.{md}"))

	err := Pattern("**/[unclosed")
	require.Error(t, err)
	assert.Equal(t, ragerr.ErrCodeInvalidInput, codeOf(t, err))
}
