package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/pagebuilder/pkg/adapters/file"
	"github.com/aretw0/pagebuilder/pkg/domain"
	"github.com/aretw0/pagebuilder/pkg/ports"
	contract "github.com/aretw0/pagebuilder/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ ports.PageLoader = (*file.Loader)(nil)
	_ ports.Watchable  = (*file.Loader)(nil)
)

const yamlPage = `
reportActionId: report-7
page:
  webNodes:
    n1:
      viewRepresentation:
        label: Threshold
        currentValue:
          integer: 3
        required: true
    n2:
      viewRepresentation:
        label: Column
  webNodePageConfiguration:
    selectionTranslators:
      - id: 1
        sourceID: n1
        targetIDs: [n2]
`

const jsonPage = `{
  "nodeViews": {
    "d1": {"extensionConfig": {"extensionType": "dialog"}}
  }
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoader_Contract(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "form.yaml", yamlPage)
	writeFile(t, dir, "dialog.json", jsonPage)
	writeFile(t, dir, "notes.txt", "ignored")

	contract.PageLoaderContractTest(t, file.NewLoader(dir), map[string][]string{
		"form":   {"n1", "n2"},
		"dialog": {"d1"},
	})
}

func TestReadPageFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("YAML Request", func(t *testing.T) {
		req, err := file.ReadPageFile(writeFile(t, dir, "form.yaml", yamlPage))
		require.NoError(t, err)
		assert.Equal(t, "report-7", req.ReportActionID)

		cfg, vt, ok := req.Page.Node("n1")
		require.True(t, ok)
		assert.Equal(t, domain.ViewWebNodes, vt)
		assert.Equal(t, "Threshold", cfg.Representation()["label"])
		assert.True(t, cfg.Required())

		require.NotNil(t, req.Page.Configuration)
		require.Len(t, req.Page.Configuration.SelectionTranslators, 1)
		tr := req.Page.Configuration.SelectionTranslators[0]
		assert.Equal(t, 1, tr.ID)
		assert.Equal(t, []string{"n2"}, tr.TargetIDs)
	})

	t.Run("JSON Bare Page", func(t *testing.T) {
		req, err := file.ReadPageFile(writeFile(t, dir, "dialog.json", jsonPage))
		require.NoError(t, err)
		assert.True(t, req.Page.HasDialog())
		assert.Empty(t, req.ReportActionID)
	})

	t.Run("Schema Violation", func(t *testing.T) {
		bad := `
webNodePageConfiguration:
  selectionTranslators:
    - id: one
`
		_, err := file.ReadPageFile(writeFile(t, dir, "bad.yaml", bad))
		assert.ErrorContains(t, err, "invalid page document")
	})

	t.Run("Nodes Must Be Objects", func(t *testing.T) {
		_, err := file.ReadPageFile(writeFile(t, dir, "bad.json", `{"webNodes": {"n1": 5}}`))
		assert.Error(t, err)
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := file.ReadPageFile(writeFile(t, dir, "empty.yaml", ""))
		assert.Error(t, err)
	})
}

func TestPageName(t *testing.T) {
	name, ok := file.PageName("form.YML")
	assert.True(t, ok)
	assert.Equal(t, "form", name)

	_, ok = file.PageName("form.txt")
	assert.False(t, ok)
}

func TestLoader_Watch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "form.yaml", yamlPage)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loader := file.NewLoader(dir, file.WithDebounce(20*time.Millisecond))
	changes, err := loader.Watch(ctx)
	require.NoError(t, err)

	writeFile(t, dir, "notes.txt", "ignored")
	writeFile(t, dir, "form.yaml", yamlPage+"\n")
	writeFile(t, dir, "form.yaml", yamlPage+"\n\n")

	select {
	case name := <-changes:
		assert.Equal(t, "form", name)
	case <-time.After(3 * time.Second):
		t.Fatal("no change event received")
	}

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-changes:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond, "channel is closed on cancel")
}
