// File: internal/notify/notify.go
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/loks666/anyrouter-autolog/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultTimeout = 30 * time.Second

// Notifier pushes a run summary to every configured channel. Channels without
// credentials are skipped; per-channel failures are logged, never fatal.
type Notifier struct {
	logger *zap.Logger
	cfg    config.NotifyConfig
	client *http.Client
}

// New builds a notifier with a shared bounded HTTP client.
func New(logger *zap.Logger, cfg config.NotifyConfig) *Notifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Notifier{
		logger: logger.Named("notify"),
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether at least one channel is configured.
func (n *Notifier) Enabled() bool {
	return n.cfg.Email.User != "" ||
		n.cfg.PushPlusToken != "" ||
		n.cfg.ServerChanKey != "" ||
		n.cfg.DingTalkWebhook != "" ||
		n.cfg.FeishuWebhook != "" ||
		n.cfg.WeComWebhook != ""
}

// Send fans the message out to all configured channels concurrently and waits
// for them to finish.
func (n *Notifier) Send(ctx context.Context, title, content string) {
	if !n.Enabled() {
		return
	}

	channels := []struct {
		name string
		send func(context.Context, string, string) error
	}{
		{"email", n.sendEmail},
		{"pushplus", n.sendPushPlus},
		{"serverchan", n.sendServerChan},
		{"dingtalk", n.sendDingTalk},
		{"feishu", n.sendFeishu},
		{"wecom", n.sendWeCom},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, ch := range channels {
		g.Go(func() error {
			if err := ch.send(gctx, title, content); err != nil {
				n.logger.Warn("Notification channel failed.",
					zap.String("channel", ch.name), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// sendEmail delivers the summary over SMTP with STARTTLS. The server defaults
// to smtp.<sender domain> when not set explicitly.
func (n *Notifier) sendEmail(_ context.Context, title, content string) error {
	e := n.cfg.Email
	if e.User == "" || e.Password == "" || e.To == "" {
		return nil
	}

	host := e.SMTPServer
	if host == "" {
		at := strings.LastIndex(e.User, "@")
		if at < 0 || at == len(e.User)-1 {
			return fmt.Errorf("cannot derive SMTP server from sender %q", e.User)
		}
		host = "smtp." + e.User[at+1:]
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", e.User)
	fmt.Fprintf(&msg, "To: %s\r\n", e.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", title)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	msg.WriteString(content)

	auth := smtp.PlainAuth("", e.User, e.Password, host)
	recipients := strings.Split(e.To, ",")
	for i := range recipients {
		recipients[i] = strings.TrimSpace(recipients[i])
	}
	return smtp.SendMail(host+":587", auth, e.User, recipients, []byte(msg.String()))
}

func (n *Notifier) sendPushPlus(ctx context.Context, title, content string) error {
	if n.cfg.PushPlusToken == "" {
		return nil
	}
	return n.postJSON(ctx, "https://www.pushplus.plus/send", map[string]any{
		"token":   n.cfg.PushPlusToken,
		"title":   title,
		"content": content,
	})
}

func (n *Notifier) sendServerChan(ctx context.Context, title, content string) error {
	if n.cfg.ServerChanKey == "" {
		return nil
	}
	url := fmt.Sprintf("https://sctapi.ftqq.com/%s.send", n.cfg.ServerChanKey)
	return n.postJSON(ctx, url, map[string]any{
		"title": title,
		"desp":  content,
	})
}

func (n *Notifier) sendDingTalk(ctx context.Context, title, content string) error {
	if n.cfg.DingTalkWebhook == "" {
		return nil
	}
	return n.postJSON(ctx, n.cfg.DingTalkWebhook, map[string]any{
		"msgtype": "text",
		"text":    map[string]string{"content": title + "\n" + content},
	})
}

func (n *Notifier) sendFeishu(ctx context.Context, title, content string) error {
	if n.cfg.FeishuWebhook == "" {
		return nil
	}
	return n.postJSON(ctx, n.cfg.FeishuWebhook, map[string]any{
		"msg_type": "text",
		"content":  map[string]string{"text": title + "\n" + content},
	})
}

func (n *Notifier) sendWeCom(ctx context.Context, title, content string) error {
	if n.cfg.WeComWebhook == "" {
		return nil
	}
	return n.postJSON(ctx, n.cfg.WeComWebhook, map[string]any{
		"msgtype": "text",
		"text":    map[string]string{"content": title + "\n" + content},
	})
}

func (n *Notifier) postJSON(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}
