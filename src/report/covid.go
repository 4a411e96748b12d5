// covid.go 北欧疫情趋势报告
package report

import (
	"fmt"
	"strings"
	"time"

	"TrendReports/src/pipeline"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// 疫情数据源的固定列名
const (
	covidCountryRaw  = "Country/Region"
	covidProvinceRaw = "Province/State"
	covidDateLayout  = "1/2/06" // 宽表日期列的标签格式

	colCountry    = "Country"
	colDate       = "Date"
	colCases      = "Cases"
	colDeaths     = "Deaths"
	colPopulation = "Population"

	joinKeyColumn = "JoinKey"
	joinKeySep    = "|"
)

// CovidParams 疫情报告的运行参数
type CovidParams struct {
	Countries  []string       // 国家白名单
	Population map[string]int // 国家 → 人口数参照表
	WeekStart  time.Weekday
}

// CovidReport 疫情报告的输出表集合
type CovidReport struct {
	// Monthly 每个国家每个月一行：累计/新增确诊与死亡、病死率
	Monthly dataframe.DataFrame

	// Totals 每个国家一行：累计值与每十万人口折算值
	Totals dataframe.DataFrame

	// Issues 清洗阶段丢弃行的解析错误清单，只记录不中断
	Issues []*pipeline.ParseError
}

// BuildCovidReport 从确诊和死亡两张累计宽表构建疫情报告
// 两张表按 (国家, 日期) 合并后派生日历字段、挂上人口参照表再聚合
func BuildCovidReport(cases, deaths dataframe.DataFrame, params CovidParams) (*CovidReport, error) {
	report := &CovidReport{}

	// 1. 两张宽表分别清洗并转成长表
	casesLong, issues, err := covidLongTable(cases, colCases, params.Countries)
	if err != nil {
		return nil, fmt.Errorf("cases table: %w", err)
	}
	report.Issues = append(report.Issues, issues...)

	deathsLong, issues, err := covidLongTable(deaths, colDeaths, params.Countries)
	if err != nil {
		return nil, fmt.Errorf("deaths table: %w", err)
	}
	report.Issues = append(report.Issues, issues...)

	// 2. 按 (国家, 日期) 合并成一张长表
	merged, err := mergeLongTables(casesLong, deathsLong)
	if err != nil {
		return nil, err
	}

	// 3. 派生日历字段
	merged, issues, err = pipeline.DeriveCalendar(merged, pipeline.CalendarSpec{
		DateColumn: colDate,
		WeekStart:  params.WeekStart,
	})
	if err != nil {
		return nil, err
	}
	report.Issues = append(report.Issues, issues...)

	// 4. 挂上人口参照表，没配人口数时补一列缺失值保持表结构一致
	if ref, ok := populationTable(params); ok {
		merged, err = pipeline.Enrich(merged, ref, colCountry)
		if err != nil {
			return nil, err
		}
	} else {
		missing := make([]string, merged.Nrow())
		for i := range missing {
			missing[i] = "NaN"
		}
		merged = merged.Mutate(series.New(missing, series.Int, colPopulation))
	}

	// 5. 月度聚合：累计值取组内最大，新增取组内极差
	monthly, err := pipeline.Aggregate(merged,
		[]string{colCountry, pipeline.ColYear, pipeline.ColMonth, pipeline.ColMonthLabel},
		[]pipeline.Reduction{
			{Name: "CasesCum", Op: pipeline.ReduceMax, Field: colCases},
			{Name: "CasesNew", Op: pipeline.ReduceDelta, Field: colCases},
			{Name: "DeathsCum", Op: pipeline.ReduceMax, Field: colDeaths},
			{Name: "DeathsNew", Op: pipeline.ReduceDelta, Field: colDeaths},
			{Name: "DeathsPerCase", Op: pipeline.ReduceRatio, Field: colDeaths, Divisor: colCases},
			{Name: colPopulation, Op: pipeline.ReduceFirst, Field: colPopulation},
		},
		pipeline.AggregateOptions{Sorted: true},
	)
	if err != nil {
		return nil, err
	}
	report.Monthly = monthly

	// 6. 国家总计，再折算每十万人口
	totals, err := pipeline.Aggregate(merged,
		[]string{colCountry},
		[]pipeline.Reduction{
			{Name: "CasesCum", Op: pipeline.ReduceMax, Field: colCases},
			{Name: "DeathsCum", Op: pipeline.ReduceMax, Field: colDeaths},
			{Name: "DeathsPerCase", Op: pipeline.ReduceRatio, Field: colDeaths, Divisor: colCases},
			{Name: colPopulation, Op: pipeline.ReduceFirst, Field: colPopulation},
		},
		pipeline.AggregateOptions{Sorted: true},
	)
	if err != nil {
		return nil, err
	}
	report.Totals = withPer100k(totals)
	if report.Totals.Err != nil {
		return nil, fmt.Errorf("totals per-100k: %w", report.Totals.Err)
	}

	return report, nil
}

// covidLongTable 清洗一张累计宽表并展开成 (国家, 日期, 值) 长表
func covidLongTable(df dataframe.DataFrame, valueColumn string, countries []string) (dataframe.DataFrame, []*pipeline.ParseError, error) {
	spec := pipeline.NormalizeSpec{
		Keep:            []string{covidCountryRaw},
		KeepPattern:     `^\d{1,2}/\d{1,2}/\d{2}$`,
		ExcludeNonEmpty: []string{covidProvinceRaw},
		Rename:          map[string]string{covidCountryRaw: colCountry},
	}
	if len(countries) > 0 {
		spec.AllowList = map[string][]string{colCountry: countries}
	}

	clean, issues, err := pipeline.Normalize(df, spec)
	if err != nil {
		return dataframe.DataFrame{}, nil, err
	}

	long, err := pipeline.Melt(clean, pipeline.MeltSpec{
		IDColumns:   []string{colCountry},
		TimeLayout:  covidDateLayout,
		TimeColumn:  colDate,
		ValueColumn: valueColumn,
		ValueType:   series.Int,
	})
	if err != nil {
		return dataframe.DataFrame{}, nil, err
	}
	return long, issues, nil
}

// mergeLongTables 把确诊长表和死亡长表按 (国家, 日期) 合并
// gota的连接只认单列键，这里先拼一个复合键列，连完再拆掉
func mergeLongTables(casesLong, deathsLong dataframe.DataFrame) (dataframe.DataFrame, error) {
	left := withJoinKey(casesLong)
	right := withJoinKey(deathsLong).Select([]string{joinKeyColumn, colDeaths})
	if right.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("merge: select deaths: %w", right.Err)
	}

	merged, err := pipeline.Enrich(left, right, joinKeyColumn)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	// 只在死亡表出现的 (国家, 日期) 行国家和日期列是缺失的，从复合键补回来
	keys := merged.Col(joinKeyColumn).Records()
	countries := merged.Col(colCountry).Records()
	dates := merged.Col(colDate).Records()
	for i := range keys {
		if countries[i] == "" || countries[i] == "NaN" {
			if c, d, ok := strings.Cut(keys[i], joinKeySep); ok {
				countries[i], dates[i] = c, d
			}
		}
	}
	merged = merged.
		Mutate(series.New(countries, series.String, colCountry)).
		Mutate(series.New(dates, series.String, colDate))

	merged = merged.Drop(joinKeyColumn)
	if merged.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("merge: drop join key: %w", merged.Err)
	}
	return merged, nil
}

// withJoinKey 追加 国家|日期 复合键列
func withJoinKey(df dataframe.DataFrame) dataframe.DataFrame {
	countries := df.Col(colCountry).Records()
	dates := df.Col(colDate).Records()
	keys := make([]string, len(countries))
	for i := range keys {
		keys[i] = countries[i] + joinKeySep + dates[i]
	}
	return df.Mutate(series.New(keys, series.String, joinKeyColumn))
}

// populationTable 把人口参照map整理成两列参照表，只保留白名单国家
// 一个国家都没配时第二个返回值为false
func populationTable(params CovidParams) (dataframe.DataFrame, bool) {
	records := [][]string{{colCountry, colPopulation}}
	for _, c := range params.Countries {
		if pop, ok := params.Population[c]; ok {
			records = append(records, []string{c, fmt.Sprintf("%d", pop)})
		}
	}
	if len(records) == 1 {
		return dataframe.DataFrame{}, false
	}
	return dataframe.LoadRecords(records,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.WithTypes(map[string]series.Type{colPopulation: series.Int}),
	), true
}

// withPer100k 追加每十万人口折算列，人口缺失或为0时取0
func withPer100k(totals dataframe.DataFrame) dataframe.DataFrame {
	n := totals.Nrow()
	casesPer := make([]float64, n)
	deathsPer := make([]float64, n)

	cases := totals.Col("CasesCum")
	deaths := totals.Col("DeathsCum")
	pops := totals.Col(colPopulation)
	for i := 0; i < n; i++ {
		pop := pops.Elem(i).Float()
		if pop != pop || pop <= 0 {
			continue
		}
		if v := cases.Elem(i).Float(); v == v {
			casesPer[i] = v / pop * 100000
		}
		if v := deaths.Elem(i).Float(); v == v {
			deathsPer[i] = v / pop * 100000
		}
	}

	return totals.
		Mutate(series.New(casesPer, series.Float, "CasesPer100k")).
		Mutate(series.New(deathsPer, series.Float, "DeathsPer100k"))
}
