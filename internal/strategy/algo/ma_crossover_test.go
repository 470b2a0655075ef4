package algo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model/enum"
)

func TestMACrossoverSignals(t *testing.T) {
	a := NewMACrossover(enum.IntervalMin1)
	require.NoError(t, a.SetParams(map[string]any{"fast": 2, "slow": 3}))

	signals := feed(t, a, []float64{10, 10, 10, 14, 2})
	assert.Equal(t, []enum.OrderSide{enum.OrderSideBuy, enum.OrderSideSell}, signals)
}

func TestMACrossoverRejectsSlowNotAboveFast(t *testing.T) {
	a := NewMACrossover(enum.IntervalMin1)
	require.NoError(t, a.SetParams(map[string]any{"fast": 10, "slow": 5}))

	// The invalid slow window is ignored, the fast one applies.
	params := a.Params()
	assert.Equal(t, 10, params["fast"])
	assert.Equal(t, 25, params["slow"])
}

func TestBuildFactory(t *testing.T) {
	for _, name := range []string{"moving_average", "ma_crossover", "rsi"} {
		a, err := Build(name, enum.IntervalMin5, nil)
		require.NoError(t, err)
		assert.Equal(t, name, a.Name())
		assert.Equal(t, enum.IntervalMin5, a.Interval())
	}

	_, err := Build("hodl", enum.IntervalMin1, nil)
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)

	a, err := Build("rsi", enum.IntervalMin1, map[string]any{"period": float64(7)})
	require.NoError(t, err)
	assert.Equal(t, 7, a.Params()["period"])
}
