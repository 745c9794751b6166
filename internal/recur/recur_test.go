package recur

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		params  map[string]any
		name    string
		kind    string
		wantErr string
	}{
		{name: "valid month end", kind: "MonthEnd", params: nil},
		{name: "valid with n", kind: "Week", params: map[string]any{"n": 2}},
		{name: "valid with normalize", kind: "MonthEnd", params: map[string]any{"normalize": true}},
		{name: "n from json number", kind: "Week", params: map[string]any{"n": float64(3)}},
		{name: "unknown kind", kind: "FortnightEnd", wantErr: "unknown kind"},
		{name: "unsupported parameter", kind: "MonthEnd", params: map[string]any{"weekday": 1}, wantErr: "not supported"},
		{name: "non-integer n", kind: "Week", params: map[string]any{"n": "two"}, wantErr: "must be an integer"},
		{name: "fractional n", kind: "Week", params: map[string]any{"n": 1.5}, wantErr: "must be an integer"},
		{name: "zero n", kind: "Week", params: map[string]any{"n": 0}, wantErr: "must be positive"},
		{name: "normalize wrong type", kind: "MonthEnd", params: map[string]any{"normalize": "yes"}, wantErr: "must be a boolean"},
		{name: "weekday out of range", kind: "Week", params: map[string]any{"weekday": 7}, wantErr: "weekday"},
		{name: "week out of range", kind: "WeekOfMonth", params: map[string]any{"week": 4}, wantErr: "week"},
		{name: "day_of_month out of range", kind: "SemiMonthEnd", params: map[string]any{"day_of_month": 31}, wantErr: "day_of_month"},
		{name: "semi month end day one", kind: "SemiMonthEnd", params: map[string]any{"day_of_month": 1}},
		{name: "semi month begin day one rejected", kind: "SemiMonthBegin", params: map[string]any{"day_of_month": 1}, wantErr: "day_of_month"},
		{name: "startingMonth out of range", kind: "QuarterEnd", params: map[string]any{"startingMonth": 13}, wantErr: "startingMonth"},
		{name: "month out of range", kind: "YearEnd", params: map[string]any{"month": 0}, wantErr: "month"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.kind, tt.params)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidOffset)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestKinds(t *testing.T) {
	kinds := Kinds()
	assert.Len(t, kinds, 15)
	assert.True(t, IsKind("MonthEnd"))
	assert.True(t, IsKind("Easter"))
	assert.False(t, IsKind("monthend"))
}

func TestOffset_Advance(t *testing.T) {
	tests := []struct {
		params map[string]any
		name   string
		kind   string
		anchor time.Time
		want   time.Time
	}{
		{name: "month end from mid-month", kind: "MonthEnd", anchor: date(2025, 1, 15), want: date(2025, 1, 31)},
		{name: "month end from month end", kind: "MonthEnd", anchor: date(2025, 1, 31), want: date(2025, 2, 28)},
		{name: "month end n=2", kind: "MonthEnd", params: map[string]any{"n": 2}, anchor: date(2025, 1, 15), want: date(2025, 2, 28)},
		{name: "month begin from mid-month", kind: "MonthBegin", anchor: date(2025, 1, 15), want: date(2025, 2, 1)},
		{name: "month begin from month begin", kind: "MonthBegin", anchor: date(2025, 2, 1), want: date(2025, 3, 1)},
		{name: "business month end on anchor", kind: "BusinessMonthEnd", anchor: date(2025, 8, 29), want: date(2025, 9, 30)},
		{name: "business month end after anchor", kind: "BusinessMonthEnd", anchor: date(2025, 8, 31), want: date(2025, 9, 30)},
		{name: "business month begin weekend start", kind: "BusinessMonthBegin", anchor: date(2025, 11, 1), want: date(2025, 11, 3)},
		{name: "business month begin on anchor", kind: "BusinessMonthBegin", anchor: date(2025, 11, 3), want: date(2025, 12, 1)},
		{name: "semi month end before mid", kind: "SemiMonthEnd", anchor: date(2025, 1, 10), want: date(2025, 1, 15)},
		{name: "semi month end on mid", kind: "SemiMonthEnd", anchor: date(2025, 1, 15), want: date(2025, 1, 31)},
		{name: "semi month end on month end", kind: "SemiMonthEnd", anchor: date(2025, 1, 31), want: date(2025, 2, 15)},
		{name: "semi month end custom day", kind: "SemiMonthEnd", params: map[string]any{"day_of_month": 20}, anchor: date(2025, 1, 10), want: date(2025, 1, 20)},
		{name: "semi month end day one", kind: "SemiMonthEnd", params: map[string]any{"day_of_month": 1}, anchor: date(2025, 1, 1), want: date(2025, 1, 31)},
		{name: "semi month begin from first", kind: "SemiMonthBegin", anchor: date(2025, 1, 1), want: date(2025, 1, 15)},
		{name: "semi month begin from mid", kind: "SemiMonthBegin", anchor: date(2025, 1, 15), want: date(2025, 2, 1)},
		{name: "plain week", kind: "Week", anchor: date(2025, 1, 15), want: date(2025, 1, 22)},
		{name: "two weeks", kind: "Week", params: map[string]any{"n": 2}, anchor: date(2025, 1, 15), want: date(2025, 1, 29)},
		{name: "week anchored monday from wednesday", kind: "Week", params: map[string]any{"weekday": 0}, anchor: date(2025, 1, 15), want: date(2025, 1, 20)},
		{name: "week anchored monday from monday", kind: "Week", params: map[string]any{"weekday": 0}, anchor: date(2025, 1, 13), want: date(2025, 1, 20)},
		{name: "first monday of month", kind: "WeekOfMonth", params: map[string]any{"week": 0, "weekday": 0}, anchor: date(2025, 1, 15), want: date(2025, 2, 3)},
		{name: "first monday from first monday", kind: "WeekOfMonth", params: map[string]any{"week": 0, "weekday": 0}, anchor: date(2025, 1, 6), want: date(2025, 2, 3)},
		{name: "last friday of month", kind: "LastWeekOfMonth", params: map[string]any{"weekday": 4}, anchor: date(2025, 1, 15), want: date(2025, 1, 31)},
		{name: "last friday from last friday", kind: "LastWeekOfMonth", params: map[string]any{"weekday": 4}, anchor: date(2025, 1, 31), want: date(2025, 2, 28)},
		{name: "quarter end default", kind: "QuarterEnd", anchor: date(2025, 1, 15), want: date(2025, 3, 31)},
		{name: "quarter end on anchor", kind: "QuarterEnd", anchor: date(2025, 3, 31), want: date(2025, 6, 30)},
		{name: "quarter end january cycle", kind: "QuarterEnd", params: map[string]any{"startingMonth": 1}, anchor: date(2025, 1, 15), want: date(2025, 1, 31)},
		{name: "quarter begin january cycle", kind: "QuarterBegin", params: map[string]any{"startingMonth": 1}, anchor: date(2025, 1, 15), want: date(2025, 4, 1)},
		{name: "quarter begin on anchor", kind: "QuarterBegin", params: map[string]any{"startingMonth": 1}, anchor: date(2025, 4, 1), want: date(2025, 7, 1)},
		{name: "year end", kind: "YearEnd", anchor: date(2025, 1, 15), want: date(2025, 12, 31)},
		{name: "year end on anchor", kind: "YearEnd", anchor: date(2025, 12, 31), want: date(2026, 12, 31)},
		{name: "year begin", kind: "YearBegin", anchor: date(2025, 6, 30), want: date(2026, 1, 1)},
		{name: "year begin on anchor", kind: "YearBegin", anchor: date(2026, 1, 1), want: date(2027, 1, 1)},
		{name: "easter", kind: "Easter", anchor: date(2025, 1, 1), want: date(2025, 4, 20)},
		{name: "easter from easter", kind: "Easter", anchor: date(2025, 4, 20), want: date(2026, 4, 5)},
		{name: "business day from friday", kind: "BusinessDay", anchor: date(2025, 8, 22), want: date(2025, 8, 25)},
		{name: "business day from saturday", kind: "BusinessDay", anchor: date(2025, 8, 23), want: date(2025, 8, 25)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := Parse(tt.kind, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, o.Advance(tt.anchor))
		})
	}
}

func TestOffset_Advance_PreservesClockTime(t *testing.T) {
	o, err := Parse("MonthEnd", nil)
	require.NoError(t, err)

	anchor := time.Date(2025, 1, 15, 10, 30, 45, 0, time.UTC)
	got := o.Advance(anchor)
	assert.Equal(t, time.Date(2025, 1, 31, 10, 30, 45, 0, time.UTC), got)
}

func TestOffset_Advance_Normalize(t *testing.T) {
	o, err := Parse("MonthEnd", map[string]any{"normalize": true})
	require.NoError(t, err)

	anchor := time.Date(2025, 1, 31, 10, 30, 0, 0, time.UTC)
	got := o.Advance(anchor)
	assert.Equal(t, date(2025, 2, 28), got)
}

func TestOffset_Advance_Deterministic(t *testing.T) {
	for _, kind := range Kinds() {
		o, err := Parse(kind, nil)
		require.NoError(t, err)

		anchor := time.Date(2025, 5, 14, 8, 0, 0, 0, time.UTC)
		first := o.Advance(anchor)
		second := o.Advance(anchor)
		assert.Equal(t, first, second, "kind %s must be deterministic", kind)
		assert.True(t, first.After(anchor), "kind %s must advance strictly forward", kind)
	}
}
