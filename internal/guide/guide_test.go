package guide

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	g := Default()
	require.Len(t, g.Sections, 3)
	assert.Equal(t, "Tokens & Payment", g.Sections[0].Title)
	assert.Len(t, g.Sections[1].Steps, 5)
	assert.Len(t, g.Sections[2].Steps, 4)
	assert.Equal(t, "2. Insert Tokens", g.Sections[2].Steps[1].Header)
	assert.Contains(t, g.Sections[2].Steps[1].Text, "Red slot")
	assert.Empty(t, g.Sections[0].Steps[0].Header)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	custom := filepath.Join(dir, "guide.yaml")
	require.NoError(t, os.WriteFile(custom, []byte("title: Notes\nsections:\n  - title: Hours\n    steps:\n      - text: Open 24/7\n"), 0o644))
	g, err := Load(custom)
	require.NoError(t, err)
	assert.Equal(t, "Notes", g.Title)
	assert.Equal(t, "Open 24/7", g.Sections[0].Steps[0].Text)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("title: Nothing\n"), 0o644))
	_, err = Load(empty)
	assert.Error(t, err)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	g, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), g)
}
