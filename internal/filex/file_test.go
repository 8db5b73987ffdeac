package filex

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureDir_CreatesNestedDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")

	require.NoError(t, EnsureDir(dir))

	fi, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, fi.IsDir(), "should create a directory")

	if runtime.GOOS != "windows" {
		require.Equal(t, os.FileMode(0o700), fi.Mode().Perm()&0o700)
	}
}

func TestEnsureDir_Idempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "creds")

	require.NoError(t, EnsureDir(dir))
	require.NoError(t, EnsureDir(dir))
}

func TestEnsureDir_FailsIfFileWithSameNameExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o660))

	require.Error(t, EnsureDir(path), "should fail when a file exists with the same name")
}

func TestWriteFilePrivate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")

	require.NoError(t, WriteFilePrivate(path, []byte(`{"a":1}`)))
	require.NoError(t, WriteFilePrivate(path, []byte(`{"a":2}`)))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, `{"a":2}`, string(got))

	if runtime.GOOS != "windows" {
		fi, err := os.Stat(path)
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must not be left behind")
}
