package slots

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		name     string
		from     string
		to       string
		interval int
		expected []string
	}{
		{
			name:     "morning block 30 minute slots",
			from:     "09:00",
			to:       "12:00",
			interval: 30,
			expected: []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"},
		},
		{
			name:     "60 minute slots",
			from:     "09:00",
			to:       "12:00",
			interval: 60,
			expected: []string{"09:00", "10:00", "11:00"},
		},
		{
			name:     "last slot must fit entirely",
			from:     "09:00",
			to:       "10:45",
			interval: 30,
			expected: []string{"09:00", "09:30", "10:00"},
		},
		{
			name:     "interval larger than range",
			from:     "09:00",
			to:       "09:20",
			interval: 30,
			expected: nil,
		},
		{
			name:     "exact single slot",
			from:     "09:00",
			to:       "09:30",
			interval: 30,
			expected: []string{"09:00"},
		},
		{
			name:     "zero interval",
			from:     "09:00",
			to:       "12:00",
			interval: 0,
			expected: nil,
		},
		{
			name:     "negative interval",
			from:     "09:00",
			to:       "12:00",
			interval: -15,
			expected: nil,
		},
		{
			name:     "inverted range",
			from:     "12:00",
			to:       "09:00",
			interval: 30,
			expected: nil,
		},
		{
			name:     "equal endpoints",
			from:     "09:00",
			to:       "09:00",
			interval: 30,
			expected: nil,
		},
		{
			name:     "malformed from",
			from:     "nine",
			to:       "12:00",
			interval: 30,
			expected: nil,
		},
		{
			name:     "uneven interval keeps stepping from start",
			from:     "10:00",
			to:       "11:30",
			interval: 25,
			expected: []string{"10:00", "10:25", "10:50"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Generate(tt.from, tt.to, tt.interval))
		})
	}
}

func TestGenerateProperties(t *testing.T) {
	cases := []struct {
		from, to string
		interval int
	}{
		{"08:00", "17:00", 30},
		{"09:15", "13:40", 45},
		{"00:00", "23:59", 60},
		{"06:30", "07:00", 10},
	}

	for _, c := range cases {
		first := Generate(c.from, c.to, c.interval)
		second := Generate(c.from, c.to, c.interval)
		assert.Equal(t, first, second, "same inputs must give same sequence")

		start, err := ToMinutes(c.from)
		require.NoError(t, err)
		end, err := ToMinutes(c.to)
		require.NoError(t, err)

		prev := -1
		for _, s := range first {
			m, err := ToMinutes(s)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, m, start, "slot %s before range start", s)
			assert.LessOrEqual(t, m+c.interval, end, "slot %s overflows range end", s)
			if prev >= 0 {
				assert.Equal(t, c.interval, m-prev, "slots must step by interval")
			}
			prev = m
		}
	}
}

func TestContains(t *testing.T) {
	assert.True(t, Contains("09:00", "12:00", 30, "10:30"))
	assert.False(t, Contains("09:00", "12:00", 30, "10:15"))
	assert.False(t, Contains("09:00", "12:00", 30, "11:45"), "slot end would overflow range")
	assert.False(t, Contains("09:00", "09:00", 30, "09:00"))
}

func TestToMinutes(t *testing.T) {
	tests := []struct {
		in      string
		out     int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:30", 570, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"1200", 0, true},
		{"ab:cd", 0, true},
	}
	for _, tt := range tests {
		m, err := ToMinutes(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.out, m, tt.in)
		assert.Equal(t, tt.in, FromMinutes(m), "round trip %s", tt.in)
	}
}

func TestRangeMinutes(t *testing.T) {
	assert.Equal(t, 180, RangeMinutes("09:00", "12:00"))
	assert.Equal(t, 0, RangeMinutes("12:00", "09:00"))
	assert.Equal(t, 0, RangeMinutes("bad", "12:00"))
}
