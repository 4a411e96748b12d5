package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Config 结构体定义了应用程序的配置结构
type Config struct {
	DataDir   string `json:"data_dir"`   // 快照与中间数据目录
	OutputDir string `json:"output_dir"` // 报告工作簿输出目录

	LogName    string `json:"log_name"`
	LogMaxSize string `json:"log_max_size"`

	Schedule Duration `json:"schedule"` // 报告刷新间隔

	SendEmail struct {
		Server   string   `json:"server"`   // SMTP服务器地址(含端口)
		Username string   `json:"username"` // 发件账号
		Password string   `json:"password"` // 密码/授权码
		From     string   `json:"from"`     // 发件人
		To       []string `json:"to"`       // 收件人列表
		Subject  string   `json:"subject"`  // 邮件主题前缀
	} `json:"send_email"`
}

// DataConfig 数据集与报告参数配置
type DataConfig struct {
	CovidCasesURL  string `json:"covid_cases_url"`  // 确诊累计宽表
	CovidDeathsURL string `json:"covid_deaths_url"` // 死亡累计宽表
	ShootingsURL   string `json:"shootings_url"`    // 枪击事件平表
	Latin1         bool   `json:"latin1"`           // 数据源是否为ISO-8859-1编码

	Countries  []string       `json:"countries"`  // 疫情报告的国家白名单
	Population map[string]int `json:"population"` // 国家 → 人口数，内联参照表

	// 可选：改用参照工作簿维护人口数
	PopulationXLSX  string `json:"population_xlsx"`
	PopulationSheet string `json:"population_sheet"`

	WeekStart         string `json:"week_start"`          // 一周起始日(如 "Monday")
	HourBucketMinutes int    `json:"hour_bucket_minutes"` // 小时派生的分钟粒度
	SnapshotDir       string `json:"snapshot_dir"`        // 手动快照监控目录
}

var (
	once               sync.Once
	instance           *Config
	dataConfigInstance *DataConfig
	mu                 sync.RWMutex
)

func LoadConfig(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	var err error
	once.Do(func() {
		instance, dataConfigInstance, err = loadConfigs(jsonFolder, jsonFile, dataJsonFile)
	})
	return instance, dataConfigInstance, err
}

func loadConfigs(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)
	dataConfigFile := filepath.Join(jsonFolder, dataJsonFile)

	configData, err := readFile(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	dataConfigData, err := readFile(dataConfigFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取数据配置文件失败: %w", err)
	}

	cfgChan := make(chan *Config, 1)
	dcfgChan := make(chan *DataConfig, 1)
	errChan := make(chan error, 2)

	go parseConfig(configData, cfgChan, errChan)
	go parseDataConfig(dataConfigData, dcfgChan, errChan)

	cfg, dcfg, err := waitForResults(cfgChan, dcfgChan, errChan)
	if err != nil {
		return nil, nil, err
	}

	return cfg, dcfg, nil
}

func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return data, nil
}

func parseConfig(data []byte, resultChan chan<- *Config, errChan chan<- error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		errChan <- fmt.Errorf("解析Config失败: %w", err)
		return
	}
	resultChan <- &cfg
}

func parseDataConfig(data []byte, resultChan chan<- *DataConfig, errChan chan<- error) {
	var dcfg DataConfig
	if err := json.Unmarshal(data, &dcfg); err != nil {
		errChan <- fmt.Errorf("解析DataConfig失败: %w", err)
		return
	}
	resultChan <- &dcfg
}

func waitForResults(
	cfgChan <-chan *Config,
	dcfgChan <-chan *DataConfig,
	errChan <-chan error,
) (*Config, *DataConfig, error) {
	var (
		cfg    *Config
		dcfg   *DataConfig
		errors []error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
		case d := <-dcfgChan:
			dcfg = d
		case err := <-errChan:
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return nil, nil, combineErrors(errors)
	}

	if cfg == nil || dcfg == nil {
		return nil, nil, fmt.Errorf("部分配置未加载成功")
	}

	return cfg, dcfg, nil
}

func combineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	msg := "配置加载遇到多个错误:"
	for _, err := range errs {
		msg = fmt.Sprintf("%s\n- %v", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

// Duration 是time.Duration的自定义包装类型
// 用于支持JSON序列化和反序列化
type Duration time.Duration

// UnmarshalJSON 实现json.Unmarshaler接口
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON 实现json.Marshaler接口
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// WeekStartDay 解析一周起始日，配置缺省或不认识时按周日
func (dc *DataConfig) WeekStartDay() time.Weekday {
	mu.RLock()
	defer mu.RUnlock()
	switch dc.WeekStart {
	case "Monday":
		return time.Monday
	case "Tuesday":
		return time.Tuesday
	case "Wednesday":
		return time.Wednesday
	case "Thursday":
		return time.Thursday
	case "Friday":
		return time.Friday
	case "Saturday":
		return time.Saturday
	default:
		return time.Sunday
	}
}

// GetPopulation 读取某个国家的人口数
func (dc *DataConfig) GetPopulation(country string) int {
	mu.RLock()
	defer mu.RUnlock()
	return dc.Population[country]
}

// SetPopulation 更新某个国家的人口数(从参照工作簿覆盖内联值时用)
func (dc *DataConfig) SetPopulation(country string, value int) {
	mu.Lock()
	defer mu.Unlock()
	if dc.Population == nil {
		dc.Population = make(map[string]int)
	}
	dc.Population[country] = value
}
