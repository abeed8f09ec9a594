package fine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/smabibs/SiPerpus/circulation/internal/fine"
)

func date(s string) time.Time {
	t, err := time.Parse(time.DateTime, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestPolicy_Compute(t *testing.T) {
	policy := fine.NewPolicy(1000)
	tests := []struct {
		name     string
		due      time.Time
		returned time.Time
		qty      int
		want     int64
	}{
		{
			name:     "returned before due",
			due:      date("2024-01-10 00:00:00"),
			returned: date("2024-01-09 12:00:00"),
			qty:      3,
			want:     0,
		},
		{
			name:     "returned exactly at due",
			due:      date("2024-01-10 00:00:00"),
			returned: date("2024-01-10 00:00:00"),
			qty:      1,
			want:     0,
		},
		{
			name:     "three days late two copies",
			due:      date("2024-01-10 00:00:00"),
			returned: date("2024-01-13 00:00:00"),
			qty:      2,
			want:     6000,
		},
		{
			name:     "one second late counts a day",
			due:      date("2024-01-10 00:00:00"),
			returned: date("2024-01-10 00:00:01"),
			qty:      1,
			want:     1000,
		},
		{
			name:     "partial day rounds up",
			due:      date("2024-01-10 08:00:00"),
			returned: date("2024-01-12 09:30:00"),
			qty:      1,
			want:     3000,
		},
		{
			name:     "non-positive quantity treated as one",
			due:      date("2024-01-10 00:00:00"),
			returned: date("2024-01-11 00:00:00"),
			qty:      0,
			want:     1000,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, policy.Compute(tt.due, tt.returned, tt.qty))
		})
	}
}

func TestNewPolicy_DefaultRate(t *testing.T) {
	require.Equal(t, fine.DefaultRatePerDayPerCopy, fine.NewPolicy(0).RatePerDayPerCopy)
	require.Equal(t, int64(500), fine.NewPolicy(500).RatePerDayPerCopy)
}

func TestDaysLate(t *testing.T) {
	due := date("2024-03-01 10:00:00")
	require.Zero(t, fine.DaysLate(due, due.Add(-time.Hour)))
	require.EqualValues(t, 1, fine.DaysLate(due, due.Add(24*time.Hour)))
	require.EqualValues(t, 2, fine.DaysLate(due, due.Add(24*time.Hour+time.Nanosecond)))
}
