package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEntryConfig(t *testing.T) {
	valid := EntryConfig{MinWager: 100, MaxWager: 10000, RakeBps: 500, BurnBps: 200, BurnPolicy: BurnAtSweep}

	t.Run("valid config", func(t *testing.T) {
		require.NoError(t, ValidateEntryConfig(valid))
	})

	t.Run("rake above cap", func(t *testing.T) {
		c := valid
		c.RakeBps = 1001
		err := ValidateEntryConfig(c)
		require.Error(t, err)
		assert.Equal(t, "INVALID_ENTRY_CONFIG", err.(*AppError).Code)
	})

	t.Run("burn above cap", func(t *testing.T) {
		c := valid
		c.BurnBps = 10001
		require.Error(t, ValidateEntryConfig(c))
	})

	t.Run("max below min", func(t *testing.T) {
		c := valid
		c.MaxWager = 50
		require.Error(t, ValidateEntryConfig(c))
	})

	t.Run("zero min wager", func(t *testing.T) {
		c := valid
		c.MinWager = 0
		require.Error(t, ValidateEntryConfig(c))
	})

	t.Run("unknown burn policy", func(t *testing.T) {
		c := valid
		c.BurnPolicy = "sometimes"
		require.Error(t, ValidateEntryConfig(c))
	})
}

func TestValidateGameID(t *testing.T) {
	assert.NoError(t, ValidateGameID("crash-royale"))
	assert.NoError(t, ValidateGameID("dice_duel_2"))
	assert.Error(t, ValidateGameID("X"))
	assert.Error(t, ValidateGameID("-leading"))
	assert.Error(t, ValidateGameID("UPPER"))
	assert.Error(t, ValidateGameID(""))
}

func TestEntryConfigMath(t *testing.T) {
	c := EntryConfig{RakeBps: 500, BurnBps: 200}
	assert.Equal(t, int64(5), c.Rake(100))
	assert.Equal(t, int64(2), c.Burn(100))
	assert.Equal(t, int64(0), c.Rake(1)) // integer floor
}

func TestSessionStateTerminal(t *testing.T) {
	assert.False(t, SessionOpen.Terminal())
	assert.True(t, SessionSettled.Terminal())
	assert.True(t, SessionRefunded.Terminal())
	assert.True(t, SessionExpired.Terminal())
}

func TestGameAcceptsSessions(t *testing.T) {
	g := &Game{State: GameActive}
	assert.True(t, g.AcceptsSessions())

	g.Paused = true
	assert.False(t, g.AcceptsSessions())

	g.Paused = false
	g.State = GamePendingRemoval
	assert.False(t, g.AcceptsSessions())
}

func TestValidatePositiveAmount(t *testing.T) {
	assert.NoError(t, ValidatePositiveAmount(1))
	assert.Error(t, ValidatePositiveAmount(0))
	assert.Error(t, ValidatePositiveAmount(-5))
}
