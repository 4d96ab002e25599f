package storage

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveGetDelete(t *testing.T) {
	s := NewFileStorage(t.TempDir())

	require.NoError(t, s.Save("jobs/abc/colorized.png", strings.NewReader("png bytes")))
	assert.True(t, s.Exists("jobs/abc/colorized.png"))

	rc, err := s.Get("jobs/abc/colorized.png")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "png bytes", string(data))

	require.NoError(t, s.Save("jobs/abc/colorized.png", strings.NewReader("v2")))
	rc, err = s.Get("jobs/abc/colorized.png")
	require.NoError(t, err)
	data, _ = io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "v2", string(data))

	require.NoError(t, s.Delete("jobs/abc"))
	assert.False(t, s.Exists("jobs/abc/colorized.png"))
}

func TestMissingObjects(t *testing.T) {
	s := NewFileStorage(t.TempDir())

	_, err := s.Get("jobs/nope.json")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete("jobs/nope.json"), ErrNotFound)
	assert.False(t, s.Exists("jobs/nope.json"))
}

func TestPathsStayInsideBase(t *testing.T) {
	s := NewFileStorage(t.TempDir())

	for _, p := range []string{"", ".", "..", "../escape", "a/../../escape", "/etc/passwd"} {
		t.Run(p, func(t *testing.T) {
			assert.ErrorIs(t, s.Save(p, strings.NewReader("x")), ErrInvalidPath)
			_, err := s.Get(p)
			assert.ErrorIs(t, err, ErrInvalidPath)
			assert.False(t, s.Exists(p))
		})
	}
}
