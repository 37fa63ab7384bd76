package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// stateCache holds one storage-state file per profile. Each file is produced
// at most once per run; callers racing on the same profile wait for the first.
type stateCache struct {
	dir string

	mu      sync.Mutex
	entries map[Profile]*stateEntry
}

type stateEntry struct {
	once sync.Once
	path string
	err  error
}

func newStateCache(dir string) *stateCache {
	return &stateCache{
		dir:     dir,
		entries: map[Profile]*stateEntry{},
	}
}

func (c *stateCache) path(p Profile) string {
	return filepath.Join(c.dir, p.StateFile())
}

// get returns the state file of p, calling produce the first time. A failed
// produce is cached as well.
func (c *stateCache) get(p Profile, produce func(path string) error) (string, error) {
	c.mu.Lock()
	e, ok := c.entries[p]
	if !ok {
		e = &stateEntry{}
		c.entries[p] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		path := c.path(p)
		if err := produce(path); err != nil {
			e.err = fmt.Errorf("%w: %s profile: %w", ErrAuthentication, p, err)
			return
		}
		e.path = path
	})
	return e.path, e.err
}

// remove deletes every state file this cache attempted to write. Files that
// are already gone are not an error.
func (c *stateCache) remove() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for p := range c.entries {
		if err := os.Remove(c.path(p)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("failed to remove storage state %s: %w", c.path(p), err))
		}
	}
	return errors.Join(errs...)
}
