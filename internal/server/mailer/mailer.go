// Package mailer delivers verification links to newly registered plants.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"sync"

	"github.com/dmitrijs2005/plantgate/internal/logging"
)

type Mailer interface {
	Deliver(ctx context.Context, to, link string) error
}

// LogMailer writes the link to the log instead of sending mail.
type LogMailer struct {
	log logging.Logger
}

func NewLogMailer(log logging.Logger) *LogMailer {
	return &LogMailer{log: log.With("module", "mailer")}
}

func (m *LogMailer) Deliver(ctx context.Context, to, link string) error {
	m.log.Info(ctx, "verification link", "to", to, "link", link)
	return nil
}

var sendMail = smtp.SendMail

type SMTPMailer struct {
	addr string
	from string
	auth smtp.Auth
}

// NewSMTPMailer uses PLAIN auth when username is set.
func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	var a smtp.Auth
	if username != "" {
		a = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPMailer{addr: fmt.Sprintf("%s:%d", host, port), from: from, auth: a}
}

func (m *SMTPMailer) Deliver(_ context.Context, to, link string) error {
	if strings.ContainsAny(to, "\r\n") {
		return fmt.Errorf("invalid recipient %q", to)
	}
	msg := "From: " + m.from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: Verify your plant\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Open this link from the network you will upload from:\r\n" +
		link + "\r\n"
	if err := sendMail(m.addr, m.auth, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp: %w", err)
	}
	return nil
}

// Async hands deliveries to a goroutine and logs failures. Deliver never
// returns an error. Wait blocks until queued deliveries finish.
type Async struct {
	inner Mailer
	log   logging.Logger
	wg    sync.WaitGroup
}

func NewAsync(inner Mailer, log logging.Logger) *Async {
	return &Async{inner: inner, log: log.With("module", "mailer")}
}

func (a *Async) Deliver(ctx context.Context, to, link string) error {
	ctx = context.WithoutCancel(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.inner.Deliver(ctx, to, link); err != nil {
			a.log.Error(ctx, "mail delivery failed", "to", to, "error", err)
		}
	}()
	return nil
}

func (a *Async) Wait() { a.wg.Wait() }
