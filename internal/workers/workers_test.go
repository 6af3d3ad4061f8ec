package workers

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCount(t *testing.T) {
	t.Setenv(EnvOverride, "")

	availableCPU := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		minExpect  int
		maxExpect  int
	}{
		{
			name:       "CPU-bound task (1.0x multiplier)",
			multiplier: 1.0,
			minExpect:  1,
			maxExpect:  availableCPU,
		},
		{
			name:       "I/O-bound task (2.0x multiplier)",
			multiplier: 2.0,
			minExpect:  1,
			maxExpect:  availableCPU * 2,
		},
		{
			name:       "Mixed task (1.5x multiplier)",
			multiplier: 1.5,
			minExpect:  1,
			maxExpect:  int(float64(availableCPU) * 1.5),
		},
		{
			name:       "With limit lower than calculated",
			multiplier: 2.0,
			limit:      2,
			minExpect:  1,
			maxExpect:  2,
		},
		{
			name:       "Very low multiplier",
			multiplier: 0.1,
			minExpect:  1,
			maxExpect:  max(1, int(float64(availableCPU)*0.1)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(tt.multiplier, tt.limit)
			assert.GreaterOrEqual(t, got, tt.minExpect)
			assert.LessOrEqual(t, got, tt.maxExpect)
		})
	}
}

func TestCountWithEnvOverride(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		limit    int
		expected int
	}{
		{name: "Valid override", envValue: "8", expected: 8},
		{name: "Override with limit", envValue: "20", limit: 10, expected: 10},
		{name: "Override below limit", envValue: "5", limit: 10, expected: 5},
		{name: "Invalid override (non-numeric)", envValue: "invalid", expected: -1},
		{name: "Invalid override (zero)", envValue: "0", expected: -1},
		{name: "Invalid override (negative)", envValue: "-5", expected: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvOverride, tt.envValue)

			got := Count(1.0, tt.limit)
			if tt.expected < 0 {
				// Falls back to the GOMAXPROCS calculation
				assert.GreaterOrEqual(t, got, 1)
				return
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResolve(t *testing.T) {
	t.Setenv(EnvOverride, "")

	assert.Equal(t, 6, Resolve(6, 0))
	assert.Equal(t, 4, Resolve(6, 4))
	assert.Equal(t, ForIO(8), Resolve(0, 8))
	assert.Equal(t, ForIO(8), Resolve(-3, 8))
}

func TestCountBoundaries(t *testing.T) {
	t.Setenv(EnvOverride, "")

	tests := []struct {
		name       string
		multiplier float64
		limit      int
	}{
		{"Zero multiplier", 0.0, 0},
		{"Negative multiplier", -1.0, 0},
		{"Very high multiplier", 100.0, 0},
		{"Very high limit", 1.0, 1000},
		{"Limit of one", 4.0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(tt.multiplier, tt.limit)
			assert.GreaterOrEqual(t, got, 1)
			if tt.limit > 0 {
				assert.LessOrEqual(t, got, tt.limit)
			}
		})
	}
}

func TestHelpersRespectLimit(t *testing.T) {
	t.Setenv(EnvOverride, "")

	assert.Equal(t, 1, ForCPU(1))
	assert.LessOrEqual(t, ForIO(3), 3)
	assert.LessOrEqual(t, ForMixed(2), 2)
	assert.GreaterOrEqual(t, ForMixed(0), 1)
}

func BenchmarkCount(b *testing.B) {
	b.Setenv(EnvOverride, "")

	for i := 0; i < b.N; i++ {
		_ = Count(1.5, 10)
	}
}
