// mailer.go 报告分发：把生成的工作簿按配置邮件发出
package datapush

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"TrendReports/src/config"

	"github.com/jordan-wright/email"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	RETRY_TIMES    = 5
	RETRY_INTERVAL = 2 * time.Second
)

// Summary 一次报告运行的摘要，用作邮件正文
type Summary struct {
	RunAt         time.Time
	CovidRows     int // 疫情月度表行数
	ShootingRows  int // 枪击行政区表行数
	DroppedRows   int // 清洗阶段丢弃的行数
	WorkbookPaths []string
}

// Body 渲染邮件正文，数字按英文千分位格式化
func (s Summary) Body() string {
	p := message.NewPrinter(language.English)
	var b strings.Builder
	p.Fprintf(&b, "报告生成时间: %s\n", s.RunAt.Format("2006-01-02 15:04:05"))
	p.Fprintf(&b, "疫情月度统计: %d 行\n", s.CovidRows)
	p.Fprintf(&b, "枪击事件统计: %d 行\n", s.ShootingRows)
	if s.DroppedRows > 0 {
		p.Fprintf(&b, "清洗丢弃行数: %d\n", s.DroppedRows)
	}
	return b.String()
}

// Mailer 邮件推送器
type Mailer struct {
	cfg *config.Config
	// send 可替换的发送函数，测试时注入假实现
	send func(e *email.Email, addr string, auth smtp.Auth) error
}

// NewMailer 按应用配置创建邮件推送器
func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		cfg: cfg,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// Push 发送带工作簿附件的报告邮件，失败自动重试
func (m *Mailer) Push(summary Summary) error {
	mailCfg := m.cfg.SendEmail
	if mailCfg.Server == "" || len(mailCfg.To) == 0 {
		// 未配置邮件即静默跳过，报告照常落盘
		return nil
	}

	e := email.NewEmail()
	e.From = mailCfg.From
	e.To = mailCfg.To
	e.Subject = fmt.Sprintf("%s %s", mailCfg.Subject, summary.RunAt.Format("2006-01-02"))
	e.Text = []byte(summary.Body())

	for _, path := range summary.WorkbookPaths {
		if _, err := e.AttachFile(path); err != nil {
			return fmt.Errorf("附加工作簿 %s 失败: %w", path, err)
		}
	}

	host := mailCfg.Server
	if i := strings.Index(host, ":"); i >= 0 {
		host = host[:i]
	}
	var auth smtp.Auth
	if mailCfg.Username != "" {
		auth = smtp.PlainAuth("", mailCfg.Username, mailCfg.Password, host)
	}

	return retry(func() error {
		return m.send(e, mailCfg.Server, auth)
	}, RETRY_TIMES, RETRY_INTERVAL)
}

// 重试函数
func retry(fn func() error, times int, interval time.Duration) error {
	var err error
	for i := 0; i < times; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < times-1 {
			time.Sleep(interval)
		}
	}
	return fmt.Errorf("重试 %d 次后失败: %v", times, err)
}
