package proclock

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	release, held, err := Acquire(path)
	require.NoError(t, err)
	require.True(t, held)

	_, held2, err := Acquire(path)
	require.NoError(t, err)
	assert.False(t, held2, "second acquisition must fail while the lock is held")

	release()

	release3, held3, err := Acquire(path)
	require.NoError(t, err)
	assert.True(t, held3, "lock must be available again after release")
	release3()
}
