package reports

import (
	"errors"
	"time"
)

// GetDateRange returns start and end time for the given preset or custom
// range. startStr/endStr are "2006-01-02" and only used for DateRangeCustom.
// DateRangeAll (and an empty range) yields zero times, meaning no filter.
func GetDateRange(dateRange, startStr, endStr string, now time.Time) (time.Time, time.Time, error) {
	loc := now.Location()

	switch dateRange {
	case "", DateRangeAll:
		return time.Time{}, time.Time{}, nil
	case DateRangeDaily:
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
		end := start.Add(24*time.Hour - time.Second)
		return start, end, nil
	case DateRangeWeekly:
		// last 7 days (including today)
		end := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, loc)
		start := time.Date(now.Year(), now.Month(), now.Day()-6, 0, 0, 0, 0, loc)
		return start, end, nil
	case DateRangeMonthly:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		end := start.AddDate(0, 1, 0).Add(-time.Second)
		return start, end, nil
	case DateRangeCustom:
		if startStr == "" || endStr == "" {
			return time.Time{}, time.Time{}, errors.New("start_date and end_date required for custom range")
		}
		start, err := time.ParseInLocation("2006-01-02", startStr, loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end, err := time.ParseInLocation("2006-01-02", endStr, loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		// include entire end day
		end = end.Add(23*time.Hour + 59*time.Minute + 59*time.Second)
		if start.After(end) {
			return time.Time{}, time.Time{}, errors.New("start_date must be before end_date")
		}
		return start, end, nil
	default:
		return time.Time{}, time.Time{}, errors.New("unknown date_range: " + dateRange)
	}
}

// FilterRegistered keeps rows registered within [start, end]. Zero bounds
// are open.
func FilterRegistered(rows []ParticipantRow, start, end time.Time) []ParticipantRow {
	if start.IsZero() && end.IsZero() {
		return rows
	}
	out := make([]ParticipantRow, 0, len(rows))
	for _, r := range rows {
		if !start.IsZero() && r.RegisteredAt.Before(start) {
			continue
		}
		if !end.IsZero() && r.RegisteredAt.After(end) {
			continue
		}
		out = append(out, r)
	}
	return out
}
