package rulesource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSourceLoadsAndParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	yaml := `
rules:
  - name: purge-on-delete
    topic: change-prop.wikipedia
    match:
      meta:
        uri: /wiki/Foo
    exec:
      - method: POST
        uri: https://cache.example/purge
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	doc, err := NewFileSource(path).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, doc.Rules, 1)
	assert.Equal(t, "purge-on-delete", doc.Rules[0].Name)
	assert.Equal(t, "change-prop.wikipedia", doc.Rules[0].Topic)
}

func TestFileSourceReturnsErrorForMissingFile(t *testing.T) {
	_, err := NewFileSource("/nonexistent/rules.yaml").Load(context.Background())
	require.Error(t, err)
}
