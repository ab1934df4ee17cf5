package notify

import (
	"bytes"
	"context"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"paperstack/logger"
	"text/template"
)

type (
	Message struct {
		To      string
		Subject string
		Body    string
	}

	Sender interface {
		Send(ctx context.Context, m Message) error
	}

	// Notifier renders a named template and hands the result to a Sender.
	Notifier interface {
		Notify(ctx context.Context, to string, tmpl Template, data interface{}) error
	}

	Template string

	notifier struct {
		sender    Sender
		templates map[Template]*messageTemplate
	}

	messageTemplate struct {
		subject *template.Template
		body    *template.Template
	}
)

const (
	TemplateBackupCompleted Template = "backup_completed"
	TemplateBackupFailed    Template = "backup_failed"
	TemplateCleanup         Template = "cleanup_summary"
)

var definitions = map[Template][2]string{
	TemplateBackupCompleted: {
		"Backup {{.JobID}} completed",
		"The {{.Type}} backup {{.JobID}} finished at {{.CompletedAt}}.\n\nFiles: {{.FileCount}}\nSize: {{.TotalSize}} bytes\nLocation: {{.DownloadURL}}\n",
	},
	TemplateBackupFailed: {
		"Backup {{.JobID}} failed",
		"The {{.Type}} backup {{.JobID}} failed at {{.CompletedAt}}.\n\nReason: {{.Error}}\n",
	},
	TemplateCleanup: {
		"Backup cleanup removed {{.Deleted}} backup(s)",
		"Retention cleanup at {{.RanAt}} deleted {{.Deleted}} backup(s) older than {{.RetentionDays}} days.\n",
	},
}

func New(sender Sender) Notifier {
	templates := make(map[Template]*messageTemplate, len(definitions))
	for name, def := range definitions {
		templates[name] = &messageTemplate{
			subject: template.Must(template.New(string(name) + "_subject").Parse(def[0])),
			body:    template.Must(template.New(string(name) + "_body").Parse(def[1])),
		}
	}
	return &notifier{sender: sender, templates: templates}
}

func (n *notifier) Notify(ctx context.Context, to string, name Template, data interface{}) error {
	tmpl, ok := n.templates[name]
	if !ok {
		return errors.New("unknown notification template: " + string(name))
	}

	var subject, body bytes.Buffer
	if err := tmpl.subject.Execute(&subject, data); err != nil {
		return errors.Wrap(err, "failed to render subject")
	}
	if err := tmpl.body.Execute(&body, data); err != nil {
		return errors.Wrap(err, "failed to render body")
	}

	return n.sender.Send(ctx, Message{
		To:      to,
		Subject: subject.String(),
		Body:    body.String(),
	})
}

type logSender struct{}

// NewLogSender writes messages to the log. It is used when no SMTP server is
// configured.
func NewLogSender() Sender {
	return logSender{}
}

func (logSender) Send(ctx context.Context, m Message) error {
	logger.Info("notification",
		zap.String("to", m.To),
		zap.String("subject", m.Subject))
	return nil
}
