package datapush

import (
	"fmt"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"TrendReports/src/config"

	"github.com/jordan-wright/email"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.SendEmail.Server = "smtp.example.com:587"
	cfg.SendEmail.From = "reports@example.com"
	cfg.SendEmail.To = []string{"team@example.com"}
	cfg.SendEmail.Subject = "趋势报告"
	return cfg
}

func TestMailerPush(t *testing.T) {
	workbook := filepath.Join(t.TempDir(), "report.xlsx")
	if err := os.WriteFile(workbook, []byte("stub"), 0644); err != nil {
		t.Fatal(err)
	}

	var sent *email.Email
	m := NewMailer(testConfig())
	m.send = func(e *email.Email, addr string, auth smtp.Auth) error {
		sent = e
		if addr != "smtp.example.com:587" {
			t.Errorf("addr = %q", addr)
		}
		return nil
	}

	summary := Summary{
		RunAt:         time.Date(2020, 3, 15, 8, 0, 0, 0, time.UTC),
		CovidRows:     24,
		ShootingRows:  10,
		WorkbookPaths: []string{workbook},
	}
	if err := m.Push(summary); err != nil {
		t.Fatalf("Push: %v", err)
	}

	if sent == nil {
		t.Fatal("send was not called")
	}
	if !strings.Contains(sent.Subject, "2020-03-15") {
		t.Errorf("Subject = %q", sent.Subject)
	}
	if len(sent.Attachments) != 1 {
		t.Errorf("attachments = %d, want 1", len(sent.Attachments))
	}
	if !strings.Contains(string(sent.Text), "24") {
		t.Errorf("body = %q", sent.Text)
	}
}

func TestMailerPushRetries(t *testing.T) {
	m := NewMailer(testConfig())
	calls := 0
	m.send = func(e *email.Email, addr string, auth smtp.Auth) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("temporary failure")
		}
		return nil
	}

	// 测试里不等真实的重试间隔
	if err := retry(func() error {
		return m.send(nil, "", nil)
	}, RETRY_TIMES, time.Millisecond); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestMailerPushUnconfigured(t *testing.T) {
	m := NewMailer(&config.Config{})
	m.send = func(e *email.Email, addr string, auth smtp.Auth) error {
		t.Fatal("send should not be called without mail config")
		return nil
	}
	if err := m.Push(Summary{RunAt: time.Now()}); err != nil {
		t.Fatalf("Push: %v", err)
	}
}

func TestRetryGivesUp(t *testing.T) {
	calls := 0
	err := retry(func() error {
		calls++
		return fmt.Errorf("always failing")
	}, 3, time.Millisecond)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}
