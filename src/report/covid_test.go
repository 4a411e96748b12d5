package report

import (
	"math"
	"testing"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

func loadRaw(records [][]string) dataframe.DataFrame {
	return dataframe.LoadRecords(records,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
}

func covidFixture() (cases, deaths dataframe.DataFrame) {
	cases = loadRaw([][]string{
		{"Province/State", "Country/Region", "Lat", "Long", "1/1/20", "1/2/20", "1/3/20"},
		{"", "Denmark", "56.2", "9.5", "1", "3", "5"},
		{"Faroe Islands", "Denmark", "61.8", "-6.9", "0", "0", "1"},
		{"", "Sweden", "60.1", "18.6", "2", "2", "10"},
		{"", "Norway", "60.4", "8.4", "0", "0", "0"},
		{"", "Germany", "51.1", "10.4", "9", "9", "9"},
	})
	deaths = loadRaw([][]string{
		{"Province/State", "Country/Region", "Lat", "Long", "1/1/20", "1/2/20", "1/3/20"},
		{"", "Denmark", "56.2", "9.5", "0", "1", "1"},
		{"Faroe Islands", "Denmark", "61.8", "-6.9", "0", "0", "0"},
		{"", "Sweden", "60.1", "18.6", "0", "0", "2"},
		{"", "Norway", "60.4", "8.4", "0", "0", "0"},
		{"", "Germany", "51.1", "10.4", "1", "1", "1"},
	})
	return cases, deaths
}

func almost(t *testing.T, got, want float64, what string) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %v, want %v", what, got, want)
	}
}

func TestBuildCovidReportMonthly(t *testing.T) {
	cases, deaths := covidFixture()
	report, err := BuildCovidReport(cases, deaths, CovidParams{
		Countries:  []string{"Denmark", "Norway", "Sweden"},
		Population: map[string]int{"Denmark": 5831000, "Sweden": 10353000},
		WeekStart:  time.Monday,
	})
	if err != nil {
		t.Fatalf("BuildCovidReport: %v", err)
	}
	if len(report.Issues) != 0 {
		t.Errorf("unexpected issues: %v", report.Issues)
	}

	m := report.Monthly
	// 全部数据落在2020年1月，每国一行，按国家名升序
	if m.Nrow() != 3 {
		t.Fatalf("monthly rows = %d, want 3\n%v", m.Nrow(), m)
	}
	countries := m.Col("Country").Records()
	if countries[0] != "Denmark" || countries[1] != "Norway" || countries[2] != "Sweden" {
		t.Fatalf("country order = %v", countries)
	}

	// 丹麦行：子区域行(法罗群岛)不得掺进来
	almost(t, m.Col("CasesCum").Elem(0).Float(), 5, "Denmark CasesCum")
	almost(t, m.Col("CasesNew").Elem(0).Float(), 4, "Denmark CasesNew")
	almost(t, m.Col("DeathsCum").Elem(0).Float(), 1, "Denmark DeathsCum")
	almost(t, m.Col("DeathsPerCase").Elem(0).Float(), 0.2, "Denmark DeathsPerCase")
	if v, err := m.Col("Population").Elem(0).Int(); err != nil || v != 5831000 {
		t.Errorf("Denmark Population = %v, %v", v, err)
	}

	// 挪威全程为0：病死率分母为0时取0而不是NaN
	almost(t, m.Col("DeathsPerCase").Elem(1).Float(), 0, "Norway DeathsPerCase")

	// 德国不在白名单里
	for _, c := range countries {
		if c == "Germany" {
			t.Error("Germany should be filtered out")
		}
	}

	if y, err := m.Col("Year").Elem(0).Int(); err != nil || y != 2020 {
		t.Errorf("Year = %v, %v", y, err)
	}
	if lbl := m.Col("MonthLabel").Elem(0).String(); lbl != "Jan" {
		t.Errorf("MonthLabel = %q", lbl)
	}
}

func TestBuildCovidReportTotals(t *testing.T) {
	cases, deaths := covidFixture()
	report, err := BuildCovidReport(cases, deaths, CovidParams{
		Countries:  []string{"Denmark", "Norway", "Sweden"},
		Population: map[string]int{"Denmark": 5831000, "Sweden": 10353000},
		WeekStart:  time.Monday,
	})
	if err != nil {
		t.Fatalf("BuildCovidReport: %v", err)
	}

	totals := report.Totals
	if totals.Nrow() != 3 {
		t.Fatalf("totals rows = %d, want 3", totals.Nrow())
	}

	// 丹麦：每十万人口折算
	almost(t, totals.Col("CasesPer100k").Elem(0).Float(), 5.0/5831000*100000, "Denmark CasesPer100k")
	almost(t, totals.Col("DeathsPer100k").Elem(0).Float(), 1.0/5831000*100000, "Denmark DeathsPer100k")

	// 挪威没有人口参照：折算值取0而不是NaN
	almost(t, totals.Col("CasesPer100k").Elem(1).Float(), 0, "Norway CasesPer100k")
}

func TestBuildCovidReportMissingColumn(t *testing.T) {
	bad := loadRaw([][]string{
		{"Country", "1/1/20"},
		{"Denmark", "1"},
	})
	_, deaths := covidFixture()
	if _, err := BuildCovidReport(bad, deaths, CovidParams{Countries: []string{"Denmark"}}); err == nil {
		t.Fatal("expected schema error for missing Country/Region column")
	}
}
