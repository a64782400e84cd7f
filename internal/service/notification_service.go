package service

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"scripture_quiz_backend/internal/config"
	"scripture_quiz_backend/internal/model"
)

// MailMessage 一封待发送的邮件
type MailMessage struct {
	To      []mail.Address
	Subject string
	Text    string
	HTML    string
}

// MailSender 邮件发送后端
type MailSender interface {
	Send(ctx context.Context, msg MailMessage) error
}

// NewMailSender 按 mail.provider 选择发送实现
func NewMailSender(cfg *config.MailConfig, log *zap.Logger) MailSender {
	if cfg.Provider == "sendgrid" {
		return NewSendgridSender(cfg.SendgridAPIKey, cfg.FromName, cfg.FromAddress, cfg.SubjectPrefix)
	}
	return &LogSender{log: log, subjPrefix: cfg.SubjectPrefix}
}

var (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

type SendgridSender struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
}

func NewSendgridSender(key, fromName, fromAddress, subjPrefix string) *SendgridSender {
	return &SendgridSender{
		key:        key,
		from:       sgmail.NewEmail(fromName, fromAddress),
		subjPrefix: subjPrefix,
	}
}

func (s *SendgridSender) prepare(msg MailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = s.subjPrefix + msg.Subject
	for _, to := range msg.To {
		p.AddTos(sgmail.NewEmail(to.Name, to.Address))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	if msg.HTML != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	return m
}

func (s *SendgridSender) Send(ctx context.Context, msg MailMessage) error {
	req := sendgrid.GetRequest(s.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid returned %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

// LogSender 开发环境使用，只把邮件写入日志
type LogSender struct {
	log        *zap.Logger
	subjPrefix string
}

func (s *LogSender) Send(_ context.Context, msg MailMessage) error {
	to := make([]string, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, addr.String())
	}
	s.log.Info("email",
		zap.Strings("to", to),
		zap.String("subject", s.subjPrefix+msg.Subject),
		zap.String("body", msg.Text),
	)
	return nil
}

// Notifier 状态变更后的通知，调用方不等待结果
type Notifier interface {
	QuizScheduled(recipients []model.User, quizTitle string, newStartTime time.Time, timezone string)
	StudentReassigned(recipient model.User, quizTitle, reason string)
}

// EmailNotifier 每封邮件在独立 goroutine 中发送，失败只记录日志
type EmailNotifier struct {
	sender  MailSender
	log     *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewEmailNotifier(sender MailSender, log *zap.Logger) *EmailNotifier {
	return &EmailNotifier{sender: sender, log: log, timeout: 15 * time.Second}
}

func (n *EmailNotifier) QuizScheduled(recipients []model.User, quizTitle string, newStartTime time.Time, timezone string) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	when := newStartTime.In(loc).Format("Monday, 02 Jan 2006 15:04 MST")
	for _, u := range recipients {
		n.dispatch(MailMessage{
			To:      []mail.Address{{Name: u.Name, Address: u.Email}},
			Subject: fmt.Sprintf("%q has been scheduled", quizTitle),
			Text: fmt.Sprintf("Hello %s,\n\nThe quiz %q now starts on %s.\n",
				u.Name, quizTitle, when),
		})
	}
}

func (n *EmailNotifier) StudentReassigned(recipient model.User, quizTitle, reason string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\nYou have been given another chance to take %q. It is available to you now.\n", recipient.Name, quizTitle)
	if reason != "" {
		fmt.Fprintf(&b, "\nNote from your educator: %s\n", reason)
	}
	n.dispatch(MailMessage{
		To:      []mail.Address{{Name: recipient.Name, Address: recipient.Email}},
		Subject: fmt.Sprintf("You can retake %q", quizTitle),
		Text:    b.String(),
	})
}

func (n *EmailNotifier) dispatch(msg MailMessage) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := n.sender.Send(ctx, msg); err != nil {
			n.log.Warn("send notification failed", zap.String("subject", msg.Subject), zap.Error(err))
		}
	}()
}

// Wait 等待已派发的通知发送结束，关闭服务时调用
func (n *EmailNotifier) Wait() {
	n.wg.Wait()
}
