// File: internal/results/writer_test.go
package results

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteIndentedUnescaped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anyrouter_accounts.json")

	records := []Result{
		New("账号1", "anyrouter.top", "42", "XYZ"),
		Failed("a&b", "anyrouter.top"),
	}
	require.NoError(t, Write(path, records))

	got, err := os.ReadFile(path)
	require.NoError(t, err)

	want := `[
  {
    "name": "账号1",
    "provider": "anyrouter.top",
    "api_user": "42",
    "cookies": {
      "session": "XYZ"
    }
  },
  {
    "name": "a&b",
    "provider": "anyrouter.top",
    "api_user": "",
    "cookies": {
      "session": ""
    }
  }
]
`
	if diff := cmp.Diff(want, string(got)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteEmptySlice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")

	require.NoError(t, Write(path, []Result{}))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(got))
}

func TestWriteOverwritesPreviousContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, os.WriteFile(path, []byte("stale content that is much longer than the new file"), 0o600))

	require.NoError(t, Write(path, []Result{}))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(got))
}

func TestWriteUnwritablePath(t *testing.T) {
	err := Write(filepath.Join(t.TempDir(), "missing", "out.json"), []Result{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write results file")
}
