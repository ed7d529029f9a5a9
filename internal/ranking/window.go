package ranking

import (
	"strings"
	"time"

	"github.com/hitoshi/stackforum/internal/model"
)

// ランキングのエンドポイントが受け付ける dateFilter の値。
const (
	FilterAll    = "all"
	FilterWeek   = "week"
	FilterMonth  = "month"
	FilterYear   = "year"
	FilterCustom = "custom"
)

const dateOnly = "2006-01-02"

// ParseWindow はクエリパラメータを期間に変換する。nil は全期間を表す。
// カスタム期間には両方の境界が必要で、片方だけなら全期間のランキングになる。
// 日付のみの endDate はその日全体を含む。
func ParseWindow(dateFilter, startDate, endDate string, now time.Time) (*model.DateWindow, error) {
	filter := strings.ToLower(strings.TrimSpace(dateFilter))
	if filter == "" {
		filter = FilterAll
		if startDate != "" && endDate != "" {
			filter = FilterCustom
		}
	}

	switch filter {
	case FilterAll:
		return nil, nil
	case FilterWeek:
		return &model.DateWindow{Start: now.AddDate(0, 0, -7), End: now}, nil
	case FilterMonth:
		return &model.DateWindow{Start: now.AddDate(0, -1, 0), End: now}, nil
	case FilterYear:
		return &model.DateWindow{Start: now.AddDate(-1, 0, 0), End: now}, nil
	case FilterCustom:
		if startDate == "" || endDate == "" {
			return nil, nil
		}
		start, err := parseBound(startDate, false)
		if err != nil {
			return nil, model.NewInvalidDateRangeError("startDate: " + err.Error())
		}
		end, err := parseBound(endDate, true)
		if err != nil {
			return nil, model.NewInvalidDateRangeError("endDate: " + err.Error())
		}
		if end.Before(start) {
			return nil, model.NewInvalidDateRangeError("startDate is after endDate")
		}
		return &model.DateWindow{Start: start, End: end}, nil
	default:
		return nil, model.NewInvalidDateRangeError("unknown dateFilter " + dateFilter)
	}
}

func parseBound(value string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(dateOnly, value)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
