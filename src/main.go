package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"TrendReports/src/config"
	"TrendReports/src/datapush"
	"TrendReports/src/datasource/file"
	"TrendReports/src/datasource/web"
	"TrendReports/src/report"
	"TrendReports/src/storage"

	"github.com/robfig/cron"
)

func main() {
	jsonFolder := "./config"
	jsonFile := "config.json"
	dataJsonFile := "dataconfig.json"
	cfg, dcfg, err := config.LoadConfig(jsonFolder, jsonFile, dataJsonFile)
	if err != nil {
		log.Fatal("加载配置失败:", err)
	}

	// 初始化日志系统
	logger, err := storage.NewLogger(cfg.LogName)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}

	// 人口参照工作簿存在时覆盖配置里的内联值
	if dcfg.PopulationXLSX != "" {
		if err := loadPopulationReference(dcfg); err != nil {
			logger.Error("读取人口参照工作簿失败: " + err.Error())
		}
	}

	mailer := datapush.NewMailer(cfg)

	// 启动时先跑一轮，之后按配置的间隔定时刷新
	runReports(cfg, dcfg, logger, mailer)

	c := cron.New()
	cronSpec := fmt.Sprintf("@every %s", time.Duration(cfg.Schedule).String())
	err = c.AddFunc(cronSpec, func() {
		logger.Info(fmt.Sprintf("开始定时刷新(间隔: %v)...", cronSpec))
		runReports(cfg, dcfg, logger, mailer)

		// 顺带检查日志是否需要轮转
		if err := logger.CheckRotate(cfg); err != nil {
			logger.Error("日志轮转失败: " + err.Error())
		}
	})
	if err != nil {
		logger.Error("创建定时任务失败: " + err.Error())
		return
	}

	c.Start()
	defer c.Stop()

	// 快照目录监控：分析员手动丢进来的枪击数据集触发一次重跑
	if dcfg.SnapshotDir != "" {
		go watchSnapshots(cfg, dcfg, logger)
	}

	go startWebUI(logger)

	logger.Info(fmt.Sprintf("趋势报告服务已启动(刷新间隔: %v)，按Ctrl+C退出", time.Duration(cfg.Schedule)))
	waitForShutdown(logger)
}

// runReports 拉取三份数据集、生成两份报告工作簿并邮件分发
// 任何一步失败记录错误并放弃本轮，不影响下一轮定时刷新
func runReports(cfg *config.Config, dcfg *config.DataConfig, logger *storage.Logger, mailer *datapush.Mailer) {
	t1 := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	opts := web.FetchOptions{Latin1: dcfg.Latin1}

	cases, err := web.FetchCSV(ctx, dcfg.CovidCasesURL, opts)
	if err != nil {
		logger.Error("拉取确诊数据失败: " + err.Error())
		return
	}
	deaths, err := web.FetchCSV(ctx, dcfg.CovidDeathsURL, opts)
	if err != nil {
		logger.Error("拉取死亡数据失败: " + err.Error())
		return
	}
	shootings, err := web.FetchCSV(ctx, dcfg.ShootingsURL, web.FetchOptions{})
	if err != nil {
		logger.Error("拉取枪击数据失败: " + err.Error())
		return
	}

	covidReport, err := report.BuildCovidReport(cases, deaths, report.CovidParams{
		Countries:  dcfg.Countries,
		Population: dcfg.Population,
		WeekStart:  dcfg.WeekStartDay(),
	})
	if err != nil {
		logger.Error("构建疫情报告失败: " + err.Error())
		return
	}

	shootingsReport, err := report.BuildShootingsReport(shootings, report.ShootingsParams{
		WeekStart:         dcfg.WeekStartDay(),
		HourBucketMinutes: dcfg.HourBucketMinutes,
	})
	if err != nil {
		logger.Error("构建枪击报告失败: " + err.Error())
		return
	}

	dropped := len(covidReport.Issues) + len(shootingsReport.Issues)
	if dropped > 0 {
		logger.Warning(fmt.Sprintf("清洗阶段丢弃了 %d 行无法解析的数据", dropped))
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		logger.Error("创建输出目录失败: " + err.Error())
		return
	}

	covidPath := filepath.Join(cfg.OutputDir, "covid_trends.xlsx")
	if err := report.WriteWorkbook(covidReport.Tables(), covidPath); err != nil {
		logger.Error("写疫情工作簿失败: " + err.Error())
		return
	}
	shootingsPath := filepath.Join(cfg.OutputDir, "nypd_shootings.xlsx")
	if err := report.WriteWorkbook(shootingsReport.Tables(), shootingsPath); err != nil {
		logger.Error("写枪击工作簿失败: " + err.Error())
		return
	}

	if err := mailer.Push(datapush.Summary{
		RunAt:         t1,
		CovidRows:     covidReport.Monthly.Nrow(),
		ShootingRows:  shootingsReport.ByBoroughYear.Nrow(),
		DroppedRows:   dropped,
		WorkbookPaths: []string{covidPath, shootingsPath},
	}); err != nil {
		logger.Error("邮件分发失败: " + err.Error())
	}

	logger.Info(fmt.Sprintf("报告运行完成，耗时: %v", time.Since(t1)))
}

// loadPopulationReference 从参照工作簿读国家人口，覆盖配置里的内联值
func loadPopulationReference(dcfg *config.DataConfig) error {
	df, err := file.ReadReferenceXLSX(dcfg.PopulationXLSX, dcfg.PopulationSheet)
	if err != nil {
		return err
	}

	countries := df.Col("Country").Records()
	pops := df.Col("Population").Records()
	if df.Err != nil {
		return df.Err
	}
	for i := range countries {
		pop, err := strconv.Atoi(pops[i])
		if err != nil {
			continue
		}
		dcfg.SetPopulation(countries[i], pop)
	}
	return nil
}

// watchSnapshots 监控快照目录，新CSV落地后用它重建枪击报告
func watchSnapshots(cfg *config.Config, dcfg *config.DataConfig, logger *storage.Logger) {
	monitor, err := file.NewSnapshotMonitor(dcfg.SnapshotDir)
	if err != nil {
		logger.Error("启动快照监控失败: " + err.Error())
		return
	}
	defer monitor.Close()

	err = monitor.Watch(context.Background(), func(path string) {
		logger.Info("检测到新快照: " + path)

		df, err := file.ReadSnapshotCSV(path)
		if err != nil {
			logger.Error("读取快照失败: " + err.Error())
			return
		}

		rep, err := report.BuildShootingsReport(df, report.ShootingsParams{
			WeekStart:         dcfg.WeekStartDay(),
			HourBucketMinutes: dcfg.HourBucketMinutes,
		})
		if err != nil {
			logger.Error("快照报告构建失败: " + err.Error())
			return
		}

		out := filepath.Join(cfg.OutputDir, "nypd_shootings.xlsx")
		if err := report.WriteWorkbook(rep.Tables(), out); err != nil {
			logger.Error("快照工作簿写入失败: " + err.Error())
			return
		}
		logger.Info("快照报告已更新: " + out)
	})
	if err != nil {
		logger.Error("快照监控异常退出: " + err.Error())
	}
}

// startWebUI 启动一个简单的Web界面来显示实时日志
func startWebUI(logger *storage.Logger) {
	http.HandleFunc("/logs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Transfer-Encoding", "chunked")

		logChan := logger.Subscribe()

		for {
			select {
			case msg := <-logChan:
				if _, err := fmt.Fprintln(w, msg); err != nil {
					return
				}
				if f, ok := w.(http.Flusher); ok {
					f.Flush()
				}
			case <-r.Context().Done():
				return
			}
		}
	})

	http.ListenAndServe(":8080", nil)
}

func waitForShutdown(logger *storage.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Received signal: " + sig.String() + ", shutting down...")
	logger.Close()
	os.Exit(0)
}
