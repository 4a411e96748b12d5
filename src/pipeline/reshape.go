// reshape.go
package pipeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

const (
	meltStage     = "melt"
	pivotStage    = "pivot"
	calendarStage = "calendar"
)

// MeltSpec 宽表转长表的配置
type MeltSpec struct {
	// IDColumns 标识列，其余列都视为带时间标签的值列
	IDColumns []string

	// TimeLayout 值列列名的时间布局(如 "1/2/06")
	TimeLayout string

	// TimeColumn / ValueColumn 输出的时间列和值列列名
	TimeColumn  string
	ValueColumn string

	// ValueType 值列类型，零值时为Float
	ValueType series.Type
}

// Melt 宽表转长表
// 每个源行的每个值列产出一行 (标识, 时间, 值)，行数 = 源行数 × 值列数
// 该阶段不丢值也不求和；输出按行优先顺序排列
func Melt(df dataframe.DataFrame, spec MeltSpec) (dataframe.DataFrame, error) {
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%s: bad input table: %w", meltStage, df.Err)
	}
	for _, c := range spec.IDColumns {
		if !hasColumn(df, c) {
			return dataframe.DataFrame{}, &SchemaError{Stage: meltStage, Column: c}
		}
	}

	valueType := spec.ValueType
	if valueType == "" {
		valueType = series.Float
	}

	// 1. 找出值列并解析其时间标签
	idSet := make(map[string]bool, len(spec.IDColumns))
	for _, c := range spec.IDColumns {
		idSet[c] = true
	}
	var valueCols []string
	labels := make(map[string]string) // 列名 → 规范化日期
	for _, c := range df.Names() {
		if idSet[c] {
			continue
		}
		t, err := time.Parse(spec.TimeLayout, c)
		if err != nil {
			return dataframe.DataFrame{}, &ParseError{
				Stage: meltStage, Column: c, Value: c,
				Err: fmt.Errorf("column label is not a %q date: %w", spec.TimeLayout, err),
			}
		}
		valueCols = append(valueCols, c)
		labels[c] = t.Format("2006-01-02")
	}
	if len(valueCols) == 0 {
		return dataframe.DataFrame{}, &SchemaError{Stage: meltStage, Column: "<time-labelled value columns>"}
	}

	// 2. 逐行展开
	header := append(append([]string{}, spec.IDColumns...), spec.TimeColumn, spec.ValueColumn)
	records := make([][]string, 0, df.Nrow()*len(valueCols)+1)
	records = append(records, header)

	idRecs := make([][]string, len(spec.IDColumns))
	for i, c := range spec.IDColumns {
		idRecs[i] = df.Col(c).Records()
	}
	valRecs := make(map[string][]string, len(valueCols))
	for _, c := range valueCols {
		valRecs[c] = df.Col(c).Records()
	}

	for r := 0; r < df.Nrow(); r++ {
		for _, c := range valueCols {
			row := make([]string, 0, len(header))
			for i := range spec.IDColumns {
				row = append(row, idRecs[i][r])
			}
			row = append(row, labels[c], valRecs[c][r])
			records = append(records, row)
		}
	}

	types := map[string]series.Type{spec.ValueColumn: valueType}
	out := dataframe.LoadRecords(records,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.WithTypes(types),
	)
	if out.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%s: build long table: %w", meltStage, out.Err)
	}
	return out, nil
}

// PivotSpec 长表转宽表的配置，Melt的逆操作
type PivotSpec struct {
	IDColumn    string
	KeyColumn   string // 成为输出列名的列
	ValueColumn string
}

// Pivot 长表转宽表
// 标识与列键都按首次出现的顺序排列；(标识, 键)重复时报DuplicateKeyError
func Pivot(df dataframe.DataFrame, spec PivotSpec) (dataframe.DataFrame, error) {
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%s: bad input table: %w", pivotStage, df.Err)
	}
	for _, c := range []string{spec.IDColumn, spec.KeyColumn, spec.ValueColumn} {
		if !hasColumn(df, c) {
			return dataframe.DataFrame{}, &SchemaError{Stage: pivotStage, Column: c}
		}
	}

	ids := df.Col(spec.IDColumn).Records()
	keys := df.Col(spec.KeyColumn).Records()
	vals := df.Col(spec.ValueColumn).Records()

	var idOrder, keyOrder []string
	idSeen := make(map[string]bool)
	keySeen := make(map[string]bool)
	cells := make(map[string]string)

	for i := range ids {
		if !idSeen[ids[i]] {
			idSeen[ids[i]] = true
			idOrder = append(idOrder, ids[i])
		}
		if !keySeen[keys[i]] {
			keySeen[keys[i]] = true
			keyOrder = append(keyOrder, keys[i])
		}
		cell := ids[i] + "\x1f" + keys[i]
		if _, dup := cells[cell]; dup {
			return dataframe.DataFrame{}, &DuplicateKeyError{
				Stage: pivotStage, Key: spec.IDColumn + "+" + spec.KeyColumn,
				Value: ids[i] + "/" + keys[i], Count: 2,
			}
		}
		cells[cell] = vals[i]
	}

	header := append([]string{spec.IDColumn}, keyOrder...)
	records := make([][]string, 0, len(idOrder)+1)
	records = append(records, header)
	for _, id := range idOrder {
		row := make([]string, 0, len(header))
		row = append(row, id)
		for _, k := range keyOrder {
			if v, ok := cells[id+"\x1f"+k]; ok {
				row = append(row, v)
			} else {
				row = append(row, missingMarker)
			}
		}
		records = append(records, row)
	}

	out := dataframe.LoadRecords(records,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if out.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%s: build wide table: %w", pivotStage, out.Err)
	}
	return out, nil
}

// CalendarSpec 时间字段派生的配置
type CalendarSpec struct {
	// DateColumn 日期列(2006-01-02)，必填
	DateColumn string

	// TimeColumn 时刻列(15:04:05 或 15:04)，为空则不派生小时列
	TimeColumn string

	// WeekStart 一周的起始日，决定WeekdayIndex的0点
	WeekStart time.Weekday

	// HourBucketMinutes 小时的十进制粒度(分钟)，零值为10
	HourBucketMinutes int
}

// 派生列的固定列名
const (
	ColYear         = "Year"
	ColMonth        = "Month"
	ColMonthLabel   = "MonthLabel"
	ColWeekday      = "Weekday"
	ColWeekdayIndex = "WeekdayIndex"
	ColHour         = "Hour"
)

// DeriveCalendar 从时间戳列派生日历字段
// 新增 Year(int)、Month(1-12)、MonthLabel、Weekday、WeekdayIndex、Hour(十进制小时)
// 缺失时刻的行小时为缺失而不是0；桶化后的值不会越过24.0
func DeriveCalendar(df dataframe.DataFrame, spec CalendarSpec) (dataframe.DataFrame, []*ParseError, error) {
	if df.Err != nil {
		return dataframe.DataFrame{}, nil, fmt.Errorf("%s: bad input table: %w", calendarStage, df.Err)
	}
	if !hasColumn(df, spec.DateColumn) {
		return dataframe.DataFrame{}, nil, &SchemaError{Stage: calendarStage, Column: spec.DateColumn}
	}
	if spec.TimeColumn != "" && !hasColumn(df, spec.TimeColumn) {
		return dataframe.DataFrame{}, nil, &SchemaError{Stage: calendarStage, Column: spec.TimeColumn}
	}

	bucket := spec.HourBucketMinutes
	if bucket <= 0 {
		bucket = 10
	}

	n := df.Nrow()
	years := make([]string, n)
	months := make([]string, n)
	monthLabels := make([]string, n)
	weekdays := make([]string, n)
	weekdayIdx := make([]string, n)

	var issues []*ParseError
	dropRows := make(map[int]bool)

	dateRecs := df.Col(spec.DateColumn).Records()
	for i, r := range dateRecs {
		if r == "" || r == missingMarker {
			years[i], months[i] = missingMarker, missingMarker
			monthLabels[i], weekdays[i], weekdayIdx[i] = missingMarker, missingMarker, missingMarker
			continue
		}
		t, err := time.Parse("2006-01-02", r)
		if err != nil {
			issues = append(issues, &ParseError{
				Stage: calendarStage, Column: spec.DateColumn, Row: i, Value: r, Err: err,
			})
			dropRows[i] = true
			years[i], months[i] = missingMarker, missingMarker
			monthLabels[i], weekdays[i], weekdayIdx[i] = missingMarker, missingMarker, missingMarker
			continue
		}
		years[i] = strconv.Itoa(t.Year())
		months[i] = strconv.Itoa(int(t.Month()))
		monthLabels[i] = t.Month().String()[:3]
		weekdays[i] = t.Weekday().String()
		weekdayIdx[i] = strconv.Itoa((int(t.Weekday()) - int(spec.WeekStart) + 7) % 7)
	}

	df = df.Mutate(series.New(years, series.Int, ColYear)).
		Mutate(series.New(months, series.Int, ColMonth)).
		Mutate(series.New(monthLabels, series.String, ColMonthLabel)).
		Mutate(series.New(weekdays, series.String, ColWeekday)).
		Mutate(series.New(weekdayIdx, series.Int, ColWeekdayIndex))

	if spec.TimeColumn != "" {
		hours := make([]float64, n)
		timeRecs := df.Col(spec.TimeColumn).Records()
		for i, r := range timeRecs {
			if r == "" || r == missingMarker {
				hours[i] = math.NaN()
				continue
			}
			h, m, err := parseClock(r)
			if err != nil {
				issues = append(issues, &ParseError{
					Stage: calendarStage, Column: spec.TimeColumn, Row: i, Value: r, Err: err,
				})
				dropRows[i] = true
				hours[i] = math.NaN()
				continue
			}
			hours[i] = bucketHour(h, m, bucket)
		}
		df = df.Mutate(series.New(hours, series.Float, ColHour))
	}

	if df.Err != nil {
		return dataframe.DataFrame{}, nil, fmt.Errorf("%s: mutate: %w", calendarStage, df.Err)
	}

	if len(dropRows) > 0 {
		kept := make([]int, 0, df.Nrow()-len(dropRows))
		for i := 0; i < df.Nrow(); i++ {
			if !dropRows[i] {
				kept = append(kept, i)
			}
		}
		df = df.Subset(kept)
		if df.Err != nil {
			return dataframe.DataFrame{}, nil, fmt.Errorf("%s: drop bad rows: %w", calendarStage, df.Err)
		}
	}

	return df, issues, nil
}

// parseClock 解析 HH:MM:SS / HH:MM 形式的时刻
func parseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, 0, fmt.Errorf("not a HH:MM[:SS] clock value")
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("bad hour %q", parts[0])
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("bad minute %q", parts[1])
	}
	return hour, minute, nil
}

// bucketHour 把时刻化为按bucket分钟取整的十进制小时
// 一天最后一桶四舍五入会顶到24.0，这里压回最后一桶而不是绕回0点，
// 否则深夜的记录会被算到第二天
func bucketHour(hour, minute, bucket int) float64 {
	total := hour*60 + minute
	rounded := ((total + bucket/2) / bucket) * bucket
	if rounded >= 24*60 {
		rounded = 24*60 - bucket
	}
	return float64(rounded) / 60
}
