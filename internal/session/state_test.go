package session

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

func TestStateCache_ProducesOncePerProfile(t *testing.T) {
	cache := newStateCache(t.TempDir())
	var calls atomic.Int32

	produce := func(path string) error {
		calls.Add(1)
		return os.WriteFile(path, []byte(`{"cookies":[],"origins":[]}`), 0o600)
	}

	first, err := cache.get(ProfileDesktop, produce)
	require.NoError(t, err)
	second, err := cache.get(ProfileDesktop, produce)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, DesktopStateFile, filepath.Base(first))
	assert.Equal(t, int32(1), calls.Load())

	mobile, err := cache.get(ProfileMobile, produce)
	require.NoError(t, err)
	assert.Equal(t, MobileStateFile, filepath.Base(mobile))
	assert.Equal(t, int32(2), calls.Load())
}

func TestStateCache_ConcurrentCallersShareOneLogin(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cache := newStateCache(t.TempDir())
	var calls atomic.Int32
	release := make(chan struct{})

	produce := func(path string) error {
		calls.Add(1)
		<-release
		return os.WriteFile(path, []byte("{}"), 0o600)
	}

	const callers = 8
	paths := make([]string, callers)
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			var err error
			paths[i], err = cache.get(ProfileDesktop, produce)
			return err
		})
	}
	close(release)
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), calls.Load())
	for i := 1; i < callers; i++ {
		assert.Equal(t, paths[0], paths[i])
	}
}

func TestStateCache_FailureIsCached(t *testing.T) {
	cache := newStateCache(t.TempDir())
	loginErr := errors.New("bad credentials")
	var calls atomic.Int32

	produce := func(path string) error {
		calls.Add(1)
		return loginErr
	}

	for i := 0; i < 3; i++ {
		path, err := cache.get(ProfileDesktop, produce)
		assert.Empty(t, path)
		assert.ErrorIs(t, err, ErrAuthentication)
		assert.ErrorIs(t, err, loginErr)
	}
	assert.Equal(t, int32(1), calls.Load(), "authentication must not be retried")
}

func TestStateCache_Remove(t *testing.T) {
	dir := t.TempDir()
	cache := newStateCache(dir)

	_, err := cache.get(ProfileDesktop, func(path string) error {
		return os.WriteFile(path, []byte("{}"), 0o600)
	})
	require.NoError(t, err)

	// A failed login may leave a partial file behind
	_, err = cache.get(ProfileMobile, func(path string) error {
		require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
		return errors.New("timeout")
	})
	require.Error(t, err)

	require.NoError(t, cache.remove())
	assert.NoFileExists(t, filepath.Join(dir, DesktopStateFile))
	assert.NoFileExists(t, filepath.Join(dir, MobileStateFile))

	// Files already gone are tolerated
	assert.NoError(t, cache.remove())
}

func TestStateCache_RemoveLeavesUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	foreign := filepath.Join(dir, MobileStateFile)
	require.NoError(t, os.WriteFile(foreign, []byte("{}"), 0o600))

	cache := newStateCache(dir)
	_, err := cache.get(ProfileDesktop, func(path string) error {
		return os.WriteFile(path, []byte("{}"), 0o600)
	})
	require.NoError(t, err)
	require.NoError(t, cache.remove())

	assert.FileExists(t, foreign, "profiles never authenticated in this run are not touched")
}
