package boost

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultConfig = Config{MaxGauge: 100, SpendPerSecond: 20, RecoveryPerSecond: 10, Power: 1.5}

func TestReserveStartsFull(t *testing.T) {
	reserve, err := New(defaultConfig)
	require.NoError(t, err)
	assert.Equal(t, 100.0, reserve.Gauge())
	assert.Equal(t, 1.0, reserve.Fraction())
	assert.Equal(t, 0.0, reserve.CurrentBoostPower())
}

func TestReserveDrainsToEmptyAndCutsPower(t *testing.T) {
	reserve, err := New(defaultConfig)
	require.NoError(t, err)
	//1.- max/spend = 5 seconds, twenty quarter-second steps.
	for i := 0; i < 19; i++ {
		reserve.Update(true, 0.25)
		require.Equal(t, 1.5, reserve.CurrentBoostPower(), "step %d", i)
	}
	reserve.Update(true, 0.25)
	assert.Equal(t, 0.0, reserve.Gauge())
	assert.Equal(t, 0.0, reserve.CurrentBoostPower())

	//2.- Holding the button on an empty gauge keeps it at zero.
	reserve.Update(true, 0.25)
	assert.Equal(t, 0.0, reserve.Gauge())
	assert.Equal(t, 0.0, reserve.CurrentBoostPower())
}

func TestReserveRefillsToCap(t *testing.T) {
	reserve, err := New(defaultConfig)
	require.NoError(t, err)
	reserve.Restore(State{Gauge: 0})
	//1.- max/recovery = 10 seconds, forty quarter-second steps.
	for i := 0; i < 39; i++ {
		reserve.Update(false, 0.25)
		require.Less(t, reserve.Gauge(), 100.0)
		require.Equal(t, 0.0, reserve.CurrentBoostPower())
	}
	reserve.Update(false, 0.25)
	assert.Equal(t, 100.0, reserve.Gauge())
	reserve.Update(false, 0.25)
	assert.Equal(t, 100.0, reserve.Gauge())
}

func TestReserveSnapsResidueAtBounds(t *testing.T) {
	reserve, err := New(defaultConfig)
	require.NoError(t, err)
	//1.- 0.1 is not exact in binary; the drained gauge must still land on zero.
	for i := 0; i < 50; i++ {
		reserve.Update(true, 0.1)
	}
	assert.Equal(t, 0.0, reserve.Gauge())
	for i := 0; i < 100; i++ {
		reserve.Update(false, 0.1)
	}
	assert.Equal(t, 100.0, reserve.Gauge())
}

func TestReserveSnapshotRestore(t *testing.T) {
	reserve, err := New(defaultConfig)
	require.NoError(t, err)
	saved := reserve.Snapshot()
	reserve.Update(true, 1)
	assert.Equal(t, 80.0, reserve.Gauge())
	reserve.Restore(saved)
	assert.Equal(t, 100.0, reserve.Gauge())
	assert.Equal(t, 0.0, reserve.CurrentBoostPower())
}

func TestReserveRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{MaxGauge: 100, SpendPerSecond: 0, RecoveryPerSecond: 10, Power: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	assert.Contains(t, err.Error(), "spend rate")
}
