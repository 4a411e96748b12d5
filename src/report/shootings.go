// shootings.go 纽约枪击事件报告
package report

import (
	"time"

	"TrendReports/src/pipeline"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// 枪击数据源的列名映射
const (
	colTime         = "Time"
	colBorough      = "Borough"
	colPrecinct     = "Precinct"
	colPerpAgeGroup = "PerpAgeGroup"
	colPerpSex      = "PerpSex"
	colPerpRace     = "PerpRace"
	colMurder       = "Murder"
	colDescribed    = "HasDescription"
)

// ShootingsParams 枪击报告的运行参数
type ShootingsParams struct {
	WeekStart         time.Weekday
	HourBucketMinutes int
}

// ShootingsReport 枪击报告的输出表集合
type ShootingsReport struct {
	// ByBoroughYear 每个行政区每年一行：事件数、命案数、嫌犯信息完整的事件数
	ByBoroughYear dataframe.DataFrame

	// ByPrecinct 每个辖区一行，按辖区号升序
	ByPrecinct dataframe.DataFrame

	// ByWeekday 每个星期几一行，按配置的一周起始日排序
	ByWeekday dataframe.DataFrame

	// ByHour 每个时段一行，只统计有时刻的事件
	ByHour dataframe.DataFrame

	Issues []*pipeline.ParseError
}

// BuildShootingsReport 从事件平表构建枪击报告
func BuildShootingsReport(raw dataframe.DataFrame, params ShootingsParams) (*ShootingsReport, error) {
	report := &ShootingsReport{}

	// 1. 清洗：留八列、统一列名、哨兵值转缺失、类型转换
	clean, issues, err := pipeline.Normalize(raw, pipeline.NormalizeSpec{
		Keep: []string{
			"OCCUR_DATE", "OCCUR_TIME", "BORO", "PRECINCT",
			"PERP_AGE_GROUP", "PERP_SEX", "PERP_RACE", "STATISTICAL_MURDER_FLAG",
		},
		Rename: map[string]string{
			"OCCUR_DATE":              colDate,
			"OCCUR_TIME":              colTime,
			"BORO":                    colBorough,
			"PRECINCT":                colPrecinct,
			"PERP_AGE_GROUP":          colPerpAgeGroup,
			"PERP_SEX":                colPerpSex,
			"PERP_RACE":               colPerpRace,
			"STATISTICAL_MURDER_FLAG": colMurder,
		},
		MissingValues: map[string][]string{
			colPerpAgeGroup: {"(null)", "UNKNOWN"},
			colPerpSex:      {"(null)", "U", "UNKNOWN"},
			colPerpRace:     {"(null)", "UNKNOWN"},
		},
		DateColumns: map[string]string{colDate: "1/2/2006"},
		IntColumns:  []string{colPrecinct},
		BoolColumns: []string{colMurder},
	})
	if err != nil {
		return nil, err
	}
	report.Issues = append(report.Issues, issues...)

	// 2. 派生日历字段，含十进制小时
	clean, issues, err = pipeline.DeriveCalendar(clean, pipeline.CalendarSpec{
		DateColumn:        colDate,
		TimeColumn:        colTime,
		WeekStart:         params.WeekStart,
		HourBucketMinutes: params.HourBucketMinutes,
	})
	if err != nil {
		return nil, err
	}
	report.Issues = append(report.Issues, issues...)

	// 3. 派生"嫌犯信息完整"标志：三个嫌犯字段缺一个就算不完整
	clean = withDescribedFlag(clean)
	if clean.Err != nil {
		return nil, clean.Err
	}

	// 4. 行政区×年份：事件数、命案数、信息完整数
	// 命案标志缺失按非命案计，事件本身是真实发生的，不能因为标志缺失掉行
	report.ByBoroughYear, err = pipeline.Aggregate(clean,
		[]string{colBorough, pipeline.ColYear},
		[]pipeline.Reduction{
			{Name: "Incidents", Op: pipeline.ReduceCount},
			{Name: "Murders", Op: pipeline.ReduceSum, Field: colMurder, NullAsZero: true},
			{Name: "Described", Op: pipeline.ReduceSum, Field: colDescribed, NullAsZero: true},
		},
		pipeline.AggregateOptions{Sorted: true},
	)
	if err != nil {
		return nil, err
	}

	// 5. 按辖区
	report.ByPrecinct, err = pipeline.Aggregate(clean,
		[]string{colPrecinct},
		[]pipeline.Reduction{
			{Name: "Incidents", Op: pipeline.ReduceCount},
			{Name: "Murders", Op: pipeline.ReduceSum, Field: colMurder, NullAsZero: true},
		},
		pipeline.AggregateOptions{Sorted: true},
	)
	if err != nil {
		return nil, err
	}

	// 6. 按星期几：键带上索引列，排序才能从配置的起始日开始
	report.ByWeekday, err = pipeline.Aggregate(clean,
		[]string{pipeline.ColWeekdayIndex, pipeline.ColWeekday},
		[]pipeline.Reduction{
			{Name: "Incidents", Op: pipeline.ReduceCount},
			{Name: "Murders", Op: pipeline.ReduceSum, Field: colMurder, NullAsZero: true},
		},
		pipeline.AggregateOptions{Sorted: true},
	)
	if err != nil {
		return nil, err
	}

	// 7. 按时段：先剔除没有时刻的事件，缺失小时不是0点
	withHour := clean.Filter(dataframe.F{
		Colname:    pipeline.ColHour,
		Comparator: series.CompFunc,
		Comparando: func(el series.Element) bool { return !el.IsNA() },
	})
	if withHour.Err != nil {
		return nil, withHour.Err
	}
	report.ByHour, err = pipeline.Aggregate(withHour,
		[]string{pipeline.ColHour},
		[]pipeline.Reduction{
			{Name: "Incidents", Op: pipeline.ReduceCount},
		},
		pipeline.AggregateOptions{Sorted: true},
	)
	if err != nil {
		return nil, err
	}

	return report, nil
}

// withDescribedFlag 追加布尔列：年龄段、性别、族裔三个字段全有值才算完整
func withDescribedFlag(df dataframe.DataFrame) dataframe.DataFrame {
	age := df.Col(colPerpAgeGroup)
	sex := df.Col(colPerpSex)
	race := df.Col(colPerpRace)

	n := df.Nrow()
	flags := make([]string, n)
	for i := 0; i < n; i++ {
		if age.Elem(i).IsNA() || sex.Elem(i).IsNA() || race.Elem(i).IsNA() ||
			age.Elem(i).String() == "" || sex.Elem(i).String() == "" || race.Elem(i).String() == "" {
			flags[i] = "false"
		} else {
			flags[i] = "true"
		}
	}
	return df.Mutate(series.New(flags, series.Bool, colDescribed))
}
