package contracts

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyDay(t *testing.T) {
	today := time.Date(2026, 6, 30, 21, 0, 0, 0, time.UTC)

	tests := []struct {
		day  string
		want DayKind
	}{
		{"2026-06-30", DayToday},
		{"2026-07-01", DayTomorrow},
		{"2026-06-29", DayOther},
		{"2026-07-02", DayOther},
		{"not-a-date", DayOther},
	}

	for _, tt := range tests {
		t.Run(tt.day, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyDay(tt.day, today))
		})
	}
}

func TestDayKind_String(t *testing.T) {
	assert.Equal(t, "today", DayToday.String())
	assert.Equal(t, "tomorrow", DayTomorrow.String())
	assert.Equal(t, "other", DayOther.String())
}

func TestDateWindow(t *testing.T) {
	today := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	assert.Equal(t, []string{"2026-02-28", "2026-03-01", "2026-03-02"}, DateWindow(today, 3))
	assert.Equal(t, []string{"2026-03-02"}, DateWindow(today, 1))
	assert.Nil(t, DateWindow(today, 0))
}

func TestParseDateKey(t *testing.T) {
	d, err := ParseDateKey("2026-05-17")
	require.NoError(t, err)
	assert.Equal(t, 17, d.Day())

	_, err = ParseDateKey("2026-13-01")
	assert.Error(t, err)
}

func TestDayFields_Merge(t *testing.T) {
	existing := DayRecord{
		Date:         "2026-06-01",
		External1KWh: Float(4),
		BestSource:   Source(SourceExternal1),
	}

	merged := DayFields{ActualKWh: Float(5)}.Merge(existing)

	require.NotNil(t, merged.ActualKWh)
	assert.Equal(t, 5.0, *merged.ActualKWh)
	require.NotNil(t, merged.External1KWh, "nil incoming field must keep existing value")
	assert.Equal(t, 4.0, *merged.External1KWh)
	assert.Equal(t, SourceExternal1, *merged.BestSource)

	replaced := DayFields{External1KWh: Float(6)}.Merge(existing)
	assert.Equal(t, 6.0, *replaced.External1KWh)
}

func TestDayFields_IsEmpty(t *testing.T) {
	assert.True(t, DayFields{}.IsEmpty())
	assert.False(t, DayFields{External2KWh: Float(0)}.IsEmpty())
	assert.False(t, DayFields{BestSource: Source(SourceSFML)}.IsEmpty())
}

func TestSourceTag_Valid(t *testing.T) {
	assert.True(t, SourceSFML.Valid())
	assert.True(t, SourceExternal2.Valid())
	assert.False(t, SourceTag("internal").Valid())
}

func TestDayRecord_JSONNulls(t *testing.T) {
	rec := DayRecord{Date: "2026-06-01", ActualKWh: Float(12.5)}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, 12.5, decoded["actual_kwh"])
	assert.Nil(t, decoded["sfml_forecast_kwh"])
	assert.Contains(t, decoded, "best_source")
	assert.NotContains(t, decoded, "created_at")
}
