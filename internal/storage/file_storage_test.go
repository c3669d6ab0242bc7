package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seed struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

func TestSaveAndLoadJSON(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, fs.SaveJSONFile("catalog/feelings.json", []seed{{"Beach Sand", 5}}))
	assert.True(t, fs.FileExists("catalog/feelings.json"))

	var out []seed
	require.NoError(t, fs.LoadJSONFile("catalog/feelings.json", &out))
	assert.Equal(t, []seed{{"Beach Sand", 5}}, out)
}

func TestCacheExpiry(t *testing.T) {
	dir := t.TempDir()
	mock := clock.NewMock()
	fs, err := NewFileStorage(dir, mock)
	require.NoError(t, err)

	path := filepath.Join(dir, "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))

	data, err := fs.LoadFile("tuning.yaml")
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))

	// out-of-band edits stay hidden until the entry expires
	require.NoError(t, os.WriteFile(path, []byte("b"), 0o644))
	data, _ = fs.LoadFile("tuning.yaml")
	assert.Equal(t, "a", string(data))

	mock.Add(6 * time.Minute)
	data, _ = fs.LoadFile(path)
	assert.Equal(t, "b", string(data))
}

func TestSaveInvalidatesCache(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, fs.SaveFile("x.txt", []byte("1")))
	_, err = fs.LoadFile("x.txt")
	require.NoError(t, err)
	require.NoError(t, fs.SaveFile("x.txt", []byte("2")))

	data, err := fs.LoadFile("x.txt")
	require.NoError(t, err)
	assert.Equal(t, "2", string(data))
}

func TestLoadMissing(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir(), nil)
	require.NoError(t, err)
	_, err = fs.LoadFile("nope.json")
	assert.Error(t, err)
	assert.False(t, fs.FileExists("nope.json"))
}
