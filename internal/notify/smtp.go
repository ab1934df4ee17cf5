package notify

import (
	"context"
	"github.com/pkg/errors"
	"github.com/wneessen/go-mail"
	"paperstack/internal/config"
	"time"
)

const dialTimeout = 15 * time.Second

type (
	mailClient interface {
		DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
	}

	smtpSender struct {
		from   string
		client mailClient
	}
)

func NewSMTPSender(cfg config.SMTPConfig) (Sender, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(dialTimeout),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to configure smtp client")
	}
	return &smtpSender{from: cfg.From, client: client}, nil
}

func (s *smtpSender) Send(ctx context.Context, m Message) error {
	if m.To == "" {
		return errors.New("notification has no recipient")
	}

	msg, err := s.message(m)
	if err != nil {
		return err
	}

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return errors.Wrap(err, "failed to send mail")
	}
	return nil
}

func (s *smtpSender) message(m Message) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return nil, errors.Wrap(err, "invalid sender address")
	}
	if err := msg.To(m.To); err != nil {
		return nil, errors.Wrap(err, "invalid recipient address")
	}
	msg.Subject(m.Subject)
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, m.Body)
	return msg, nil
}
