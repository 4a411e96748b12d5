package pipeline

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

func TestMeltScenario(t *testing.T) {
	wide := dataframe.LoadRecords([][]string{
		{"Country", "1/1/20", "1/2/20"},
		{"A", "10", "15"},
	}, dataframe.DetectTypes(false), dataframe.DefaultType(series.String))

	long, err := Melt(wide, MeltSpec{
		IDColumns:   []string{"Country"},
		TimeLayout:  "1/2/06",
		TimeColumn:  "Date",
		ValueColumn: "Cases",
		ValueType:   series.Int,
	})
	if err != nil {
		t.Fatalf("Melt: %v", err)
	}

	if long.Nrow() != 2 {
		t.Fatalf("rows = %d, want 2", long.Nrow())
	}
	wantDates := []string{"2020-01-01", "2020-01-02"}
	wantCases := []int{10, 15}
	for i := 0; i < 2; i++ {
		if c := long.Col("Country").Elem(i).String(); c != "A" {
			t.Errorf("row %d Country = %q", i, c)
		}
		if d := long.Col("Date").Elem(i).String(); d != wantDates[i] {
			t.Errorf("row %d Date = %q, want %q", i, d, wantDates[i])
		}
		if v, _ := long.Col("Cases").Elem(i).Int(); v != wantCases[i] {
			t.Errorf("row %d Cases = %d, want %d", i, v, wantCases[i])
		}
	}
}

func TestMeltBadLabel(t *testing.T) {
	wide := dataframe.LoadRecords([][]string{
		{"Country", "Lat"},
		{"A", "56.2"},
	}, dataframe.DetectTypes(false), dataframe.DefaultType(series.String))

	_, err := Melt(wide, MeltSpec{
		IDColumns:   []string{"Country"},
		TimeLayout:  "1/2/06",
		TimeColumn:  "Date",
		ValueColumn: "Cases",
	})
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ParseError", err)
	}
}

// 往返性质：宽→长→宽 必须逐格还原(非退化输入)
func TestMeltPivotRoundTrip(t *testing.T) {
	wide := dataframe.LoadRecords([][]string{
		{"Country", "1/1/20", "1/2/20", "1/3/20"},
		{"Denmark", "10", "15", "22"},
		{"Sweden", "3", "3", "8"},
	}, dataframe.DetectTypes(false), dataframe.DefaultType(series.String))

	long, err := Melt(wide, MeltSpec{
		IDColumns:   []string{"Country"},
		TimeLayout:  "1/2/06",
		TimeColumn:  "Date",
		ValueColumn: "Cases",
		ValueType:   series.Int,
	})
	if err != nil {
		t.Fatalf("Melt: %v", err)
	}

	back, err := Pivot(long, PivotSpec{
		IDColumn:    "Country",
		KeyColumn:   "Date",
		ValueColumn: "Cases",
	})
	if err != nil {
		t.Fatalf("Pivot: %v", err)
	}

	// 列标签被规范化成ISO日期，但单元格值必须逐一相同
	if back.Nrow() != wide.Nrow() || back.Ncol() != wide.Ncol() {
		t.Fatalf("shape = %dx%d, want %dx%d", back.Nrow(), back.Ncol(), wide.Nrow(), wide.Ncol())
	}
	for r := 0; r < wide.Nrow(); r++ {
		for c := 0; c < wide.Ncol(); c++ {
			want := wide.Elem(r, c).String()
			got := back.Elem(r, c).String()
			if got != want {
				t.Errorf("cell (%d,%d) = %q, want %q", r, c, got, want)
			}
		}
	}
}

func TestPivotDuplicatePair(t *testing.T) {
	long := dataframe.LoadRecords([][]string{
		{"Country", "Date", "Cases"},
		{"A", "2020-01-01", "10"},
		{"A", "2020-01-01", "11"},
	}, dataframe.DetectTypes(false), dataframe.DefaultType(series.String))

	_, err := Pivot(long, PivotSpec{IDColumn: "Country", KeyColumn: "Date", ValueColumn: "Cases"})
	var de *DuplicateKeyError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want *DuplicateKeyError", err)
	}
}

func TestDeriveCalendar(t *testing.T) {
	df := dataframe.LoadRecords([][]string{
		{"Date", "Time"},
		{"2020-03-15", "12:34:00"}, // 周日
		{"2020-03-16", "00:04:00"}, // 周一
	}, dataframe.DetectTypes(false), dataframe.DefaultType(series.String))

	out, issues, err := DeriveCalendar(df, CalendarSpec{
		DateColumn:        "Date",
		TimeColumn:        "Time",
		WeekStart:         time.Monday,
		HourBucketMinutes: 10,
	})
	if err != nil {
		t.Fatalf("DeriveCalendar: %v", err)
	}
	if len(issues) != 0 {
		t.Fatalf("issues = %v", issues)
	}

	if y, _ := out.Col(ColYear).Elem(0).Int(); y != 2020 {
		t.Errorf("Year = %d", y)
	}
	if m, _ := out.Col(ColMonth).Elem(0).Int(); m != 3 {
		t.Errorf("Month = %d", m)
	}
	if l := out.Col(ColMonthLabel).Elem(0).String(); l != "Mar" {
		t.Errorf("MonthLabel = %q", l)
	}
	if w := out.Col(ColWeekday).Elem(0).String(); w != "Sunday" {
		t.Errorf("Weekday = %q", w)
	}
	// 周一起始：周日是一周的最后一天
	if i, _ := out.Col(ColWeekdayIndex).Elem(0).Int(); i != 6 {
		t.Errorf("WeekdayIndex = %d, want 6", i)
	}
	if i, _ := out.Col(ColWeekdayIndex).Elem(1).Int(); i != 0 {
		t.Errorf("WeekdayIndex = %d, want 0", i)
	}

	// 12:34 按10分钟桶约成12.5
	if h := out.Col(ColHour).Elem(0).Float(); math.Abs(h-12.5) > 1e-9 {
		t.Errorf("Hour = %v, want 12.5", h)
	}
	if h := out.Col(ColHour).Elem(1).Float(); math.Abs(h-0) > 1e-9 {
		t.Errorf("Hour = %v, want 0", h)
	}
}

// 边界：一天最后一桶不能约成24.0
func TestDeriveCalendarHourClamp(t *testing.T) {
	df := dataframe.LoadRecords([][]string{
		{"Date", "Time"},
		{"2020-01-01", "23:58:00"},
	}, dataframe.DetectTypes(false), dataframe.DefaultType(series.String))

	out, _, err := DeriveCalendar(df, CalendarSpec{
		DateColumn:        "Date",
		TimeColumn:        "Time",
		HourBucketMinutes: 10,
	})
	if err != nil {
		t.Fatalf("DeriveCalendar: %v", err)
	}
	h := out.Col(ColHour).Elem(0).Float()
	if h >= 24.0 {
		t.Fatalf("Hour = %v, must stay below 24.0", h)
	}
	want := (24*60.0 - 10) / 60.0
	if math.Abs(h-want) > 1e-9 {
		t.Errorf("Hour = %v, want %v (clamped to last bucket)", h, want)
	}
}

// 缺失时刻得到缺失小时，而不是0点
func TestDeriveCalendarMissingTime(t *testing.T) {
	df := dataframe.LoadRecords([][]string{
		{"Date", "Time"},
		{"2020-01-01", ""},
	}, dataframe.DetectTypes(false), dataframe.DefaultType(series.String))

	out, _, err := DeriveCalendar(df, CalendarSpec{DateColumn: "Date", TimeColumn: "Time"})
	if err != nil {
		t.Fatalf("DeriveCalendar: %v", err)
	}
	if !out.Col(ColHour).Elem(0).IsNA() {
		t.Fatalf("Hour = %v, want missing", out.Col(ColHour).Elem(0).Float())
	}
}
