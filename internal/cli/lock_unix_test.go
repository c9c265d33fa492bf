//go:build unix

package cli

import (
	"testing"

	"github.com/livinlefevreloca/questwatch/internal/passlock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_SkipsWhileAnotherPassHoldsTheLock(t *testing.T) {
	e := newTestEnv(t)
	e.setQuests("q1")

	lock, err := passlock.Acquire(e.lockPath)
	require.NoError(t, err)

	_, err = e.execute(t, "run")
	assert.ErrorIs(t, err, passlock.ErrLocked)
	assert.Equal(t, ExitFailure, ExitCode(err))
	assert.Empty(t, e.questIDs())

	require.NoError(t, lock.Release())
	_, err = e.execute(t, "run")
	require.NoError(t, err)
	assert.Equal(t, []string{"q1"}, e.questIDs())
}
