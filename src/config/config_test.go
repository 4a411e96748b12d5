package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	appJSON := `{
		"data_dir": "./data",
		"output_dir": "./out",
		"log_name": "app.log",
		"log_max_size": "10 * 1024 * 1024",
		"schedule": "24h",
		"send_email": {"server": "smtp.example.com:587", "from": "reports@example.com"}
	}`
	dataJSON := `{
		"covid_cases_url": "https://example.com/cases.csv",
		"covid_deaths_url": "https://example.com/deaths.csv",
		"shootings_url": "https://example.com/shootings.csv",
		"countries": ["Denmark", "Finland", "Norway", "Sweden"],
		"population": {"Denmark": 5831000},
		"week_start": "Monday",
		"hour_bucket_minutes": 10
	}`

	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(appJSON), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "dataconfig.json"), []byte(dataJSON), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, dcfg, err := LoadConfig(dir, "config.json", "dataconfig.json")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if time.Duration(cfg.Schedule) != 24*time.Hour {
		t.Errorf("Schedule = %v", time.Duration(cfg.Schedule))
	}
	if len(dcfg.Countries) != 4 {
		t.Errorf("Countries = %v", dcfg.Countries)
	}
	if dcfg.WeekStartDay() != time.Monday {
		t.Errorf("WeekStartDay = %v", dcfg.WeekStartDay())
	}
	if dcfg.GetPopulation("Denmark") != 5831000 {
		t.Errorf("GetPopulation = %d", dcfg.GetPopulation("Denmark"))
	}

	// sync.Once：重复加载返回同一份实例
	cfg2, _, err := LoadConfig(dir, "other.json", "other.json")
	if err != nil {
		t.Fatalf("second LoadConfig: %v", err)
	}
	if cfg2 != cfg {
		t.Error("LoadConfig should return the cached instance")
	}
}
