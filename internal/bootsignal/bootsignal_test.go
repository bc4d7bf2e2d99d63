package bootsignal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapState map[string]string

func (m mapState) HostValue(ctx context.Context, key string) (string, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

func (m mapState) SetHostValue(ctx context.Context, key, value string) error {
	m[key] = value
	return nil
}

func fixed(id string) Reader {
	return func() (string, error) { return id, nil }
}

func TestDetect(t *testing.T) {
	ctx := context.Background()
	hs := mapState{}

	id, booted, err := Detect(ctx, hs, fixed("aaa"))
	require.NoError(t, err)
	assert.True(t, booted, "first run counts as a boot")
	assert.Equal(t, "aaa", id)
	assert.Empty(t, hs, "detection records nothing")

	require.NoError(t, Commit(ctx, hs, id))
	assert.Equal(t, "aaa", hs[BootIDKey])

	_, booted, err = Detect(ctx, hs, fixed("aaa"))
	require.NoError(t, err)
	assert.False(t, booted, "same committed boot id means no reboot")

	id, booted, err = Detect(ctx, hs, fixed("bbb"))
	require.NoError(t, err)
	assert.True(t, booted)
	assert.Equal(t, "bbb", id)
}

func TestDetect_UncommittedBootRecoversAgain(t *testing.T) {
	ctx := context.Background()
	hs := mapState{BootIDKey: "aaa"}

	for i := 0; i < 2; i++ {
		_, booted, err := Detect(ctx, hs, fixed("bbb"))
		require.NoError(t, err)
		assert.True(t, booted, "start %d on a boot that was never committed", i+1)
	}
	assert.Equal(t, "aaa", hs[BootIDKey])
}

func TestDetect_ReaderError(t *testing.T) {
	hs := mapState{}
	_, _, err := Detect(context.Background(), hs, func() (string, error) { return "", errors.New("no proc") })
	assert.Error(t, err)
	assert.Empty(t, hs)
}

func TestFileReader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "boot_id")
	require.NoError(t, os.WriteFile(path, []byte("5d3c-11ef\n"), 0o644))

	id, err := FileReader(path)()
	require.NoError(t, err)
	assert.Equal(t, "5d3c-11ef", id)

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0o644))
	_, err = FileReader(empty)()
	assert.Error(t, err)

	_, err = FileReader(filepath.Join(dir, "missing"))()
	assert.Error(t, err)
}

func TestOnce(t *testing.T) {
	n := 0
	for range Once(true) {
		n++
	}
	assert.Equal(t, 1, n)

	n = 0
	for range Once(false) {
		n++
	}
	assert.Zero(t, n)
}
