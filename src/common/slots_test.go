package common

import (
	"testing"
	"time"

	"qrshop/src/types"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func weeklyTemplate(slotMinutes int, days map[string]types.DayWindow) *types.AvailabilityTemplate {
	return &types.AvailabilityTemplate{
		SlotMinutes: slotMinutes,
		Days:        days,
	}
}

func TestBuildSlotsWeeklyTemplate(t *testing.T) {
	// Monday 2026-08-03
	start := time.Date(2026, 8, 3, 10, 30, 0, 0, time.UTC)
	tpl := weeklyTemplate(60, map[string]types.DayWindow{
		"wed": {Enabled: true, Start: "09:00", End: "17:00"},
		"fri": {Enabled: true, Start: "09:00", End: "17:00"},
		"sat": {Enabled: false, Start: "09:00", End: "17:00"},
	})

	slots := BuildSlots("demo-barber", start, 14, tpl)

	// 2 enabled weekdays over 2 weeks, 8 one-hour slots per 09:00-17:00 day
	assert.Len(t, slots, 32)
	for _, s := range slots {
		wd := s.StartTime.Weekday()
		assert.True(t, wd == time.Wednesday || wd == time.Friday, "unexpected weekday %s", wd)
		assert.Equal(t, "demo-barber", s.Handle)
		assert.Equal(t, time.Hour, s.EndTime.Sub(s.StartTime))
		assert.False(t, s.IsBooked)
	}
	first := slots[0]
	assert.Equal(t, time.Wednesday, first.StartTime.Weekday())
	assert.Equal(t, 9, first.StartTime.Hour())
	last := slots[len(slots)-1]
	assert.Equal(t, 16, last.StartTime.Hour())
}

func TestBuildSlotsDropsPartialSlot(t *testing.T) {
	start := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	tpl := weeklyTemplate(45, map[string]types.DayWindow{
		"mon": {Enabled: true, Start: "09:00", End: "11:00"},
	})

	slots := BuildSlots("demo-barber", start, 1, tpl)

	// 09:00-09:45 and 09:45-10:30 fit; 10:30-11:15 would overrun 11:00
	assert.Len(t, slots, 2)
	assert.Equal(t, 9, slots[0].StartTime.Hour())
	assert.Equal(t, 10, slots[1].EndTime.Hour())
	assert.Equal(t, 30, slots[1].EndTime.Minute())
}

func TestBuildSlotsEdgeCases(t *testing.T) {
	start := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)

	assert.Empty(t, BuildSlots("x", start, 7, nil))
	assert.Empty(t, BuildSlots("x", start, 7, weeklyTemplate(0, nil)))

	// window shorter than one slot yields nothing
	tight := weeklyTemplate(60, map[string]types.DayWindow{
		"mon": {Enabled: true, Start: "09:00", End: "09:30"},
	})
	assert.Empty(t, BuildSlots("x", start, 1, tight))

	// unparseable clock strings skip the day instead of failing the run
	bad := weeklyTemplate(60, map[string]types.DayWindow{
		"mon": {Enabled: true, Start: "nine", End: "17:00"},
		"tue": {Enabled: true, Start: "09:00", End: "11:00"},
	})
	slots := BuildSlots("x", start, 2, bad)
	assert.Len(t, slots, 2)
	for _, s := range slots {
		assert.Equal(t, time.Tuesday, s.StartTime.Weekday())
	}
}

func TestGenerateSlotsKeepsBookedSlots(t *testing.T) {
	mock := newMockDB(t)

	// Monday 2026-08-03, one day, two one-hour slots
	start := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	rangeEnd := time.Date(2026, 8, 4, 0, 0, 0, 0, time.UTC)
	tpl := weeklyTemplate(60, map[string]types.DayWindow{
		"mon": {Enabled: true, Start: "09:00", End: "11:00"},
	})

	mock.ExpectBegin()
	// the sweep is scoped to the date range and must leave booked rows alone
	mock.ExpectExec(`UPDATE "slots" SET "deleted_at"=\$1 WHERE \(handle = \$2 AND start_time >= \$3 AND start_time < \$4 AND is_booked = \$5\)`).
		WithArgs(sqlmock.AnyArg(), "demo-barber", start, rangeEnd, false).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(`INSERT INTO "slots"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))
	mock.ExpectCommit()

	count, err := GenerateSlots("demo-barber", start, 1, tpl)
	assert.Nil(t, err)
	assert.Equal(t, 2, count)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestBuildSlotsIsDeterministic(t *testing.T) {
	start := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	tpl := weeklyTemplate(30, map[string]types.DayWindow{
		"mon": {Enabled: true, Start: "08:00", End: "12:00"},
	})
	a := BuildSlots("x", start, 7, tpl)
	b := BuildSlots("x", start, 7, tpl)
	assert.Equal(t, a, b)
}
