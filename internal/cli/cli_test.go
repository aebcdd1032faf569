package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/eramap/internal/model"
)

// setupCLI isolates config lookup and storage in a temp dir
func setupCLI(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("ERAMAP_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("ERAMAP_STORE_DRIVER", "disk")
	t.Setenv("ERAMAP_RESOLVER_PROVIDER", "")

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	batchFile, batchEras, batchApply, batchOnlyNew = "", "", false, false
	overrideYes, overrideManual, inferJSON, inferOffline = false, false, false, false

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "eramap "+Version+"\n", out)
}

func TestOverrideSetListInfer(t *testing.T) {
	setupCLI(t)

	out, _, err := execute(t, "override", "set", "Realm of Testland", "fr,de")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Realm of Testland: FR DE")

	out, _, err = execute(t, "override", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Realm of Testland: FR DE [custom]")

	out, _, err = execute(t, "infer", "realm of testland", "--offline", "--json")
	require.NoError(t, err)
	var res model.InferenceResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, []string{"FR", "DE"}, res.Countries)
	assert.Equal(t, model.SourceCustom, res.Source)
}

func TestOverrideClearRequiresYes(t *testing.T) {
	setupCLI(t)

	_, _, err := execute(t, "override", "clear")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")

	_, _, err = execute(t, "override", "clear", "--yes")
	require.NoError(t, err)
}

func TestOverrideExportJSON(t *testing.T) {
	dir := setupCLI(t)

	_, _, err := execute(t, "override", "set", "Realm of Testland", "IT")
	require.NoError(t, err)

	path := filepath.Join(dir, "export.json")
	_, _, err = execute(t, "override", "export", "--format", "json", "-o", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Realm of Testland")
	assert.Contains(t, string(data), "IT")
}

func TestBatchFileApply(t *testing.T) {
	dir := setupCLI(t)

	_, _, err := execute(t, "override", "set", "Realm of Testland", "ES")
	require.NoError(t, err)

	path := filepath.Join(dir, "items.json")
	items := `[{"id":"a","era":"Realm of Testland"},{"id":"b","era":"Qwxz Plorbian Stretch"}]`
	require.NoError(t, os.WriteFile(path, []byte(items), 0o644))

	_, errOut, err := execute(t, "batch", "--file", path, "--delay", "0", "--apply")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Resolved:     1")
	assert.Contains(t, errOut, "Failed:       1")
	assert.Contains(t, errOut, "Saved countries for 1 item(s)")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var saved []model.MediaItem
	require.NoError(t, json.Unmarshal(data, &saved))
	require.Len(t, saved, 2)
	assert.Equal(t, []string{"ES"}, saved[0].Countries)
	assert.Empty(t, saved[1].Countries)
}

func TestBatchErasIsReadOnly(t *testing.T) {
	dir := setupCLI(t)

	path := filepath.Join(dir, "eras.txt")
	require.NoError(t, os.WriteFile(path, []byte("Realm of Testland\n"), 0o644))

	_, _, err := execute(t, "batch", "--eras", path, "--apply")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be written back")
}

func TestCacheClearRequiresYes(t *testing.T) {
	setupCLI(t)

	_, _, err := execute(t, "cache", "clear")
	require.Error(t, err)

	out, _, err := execute(t, "cache", "list")
	require.NoError(t, err)
	assert.Equal(t, "(none)\n", out)
}
