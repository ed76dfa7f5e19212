// Package notify delivers run-completion email over SMTP. Delivery is best
// effort: the coordinator logs failures and keeps going.
package notify

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/blastxplorer/blastxplorer/internal/domain"
)

// addressPattern is deliberately loose: anything with a local part, an @,
// and a dotted domain is worth attempting delivery to.
var addressPattern = regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+$`)

// ValidAddress reports whether addr looks like a deliverable email address.
func ValidAddress(addr string) bool {
	return addressPattern.MatchString(addr)
}

// Config holds SMTP settings plus the site identity used in message text.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	SiteBaseURL string
	AppName     string
}

// Mailer sends run lifecycle notifications to run owners.
type Mailer struct {
	cfg    Config
	logger *zap.Logger
}

// NewMailer creates a Mailer with the given SMTP settings.
func NewMailer(cfg Config, logger *zap.Logger) *Mailer {
	return &Mailer{cfg: cfg, logger: logger}
}

// RunFinished emails the run owner that the run reached a terminal state.
// Runs without a plausible address are skipped without error.
func (m *Mailer) RunFinished(ctx context.Context, run *domain.BlastRun) error {
	if !ValidAddress(run.Email) {
		m.logger.Debug("Skipping notification, no valid address",
			zap.String("run_id", run.ID.String()),
		)
		return nil
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("notify: set sender: %w", err)
	}
	if err := msg.To(run.Email); err != nil {
		return fmt.Errorf("notify: set recipient: %w", err)
	}
	msg.Subject(fmt.Sprintf("%s BLAST results", m.cfg.AppName))
	msg.SetBodyString(mail.TypeTextPlain, m.body(run))

	opts := []mail.Option{mail.WithPort(m.cfg.Port)}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}
	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("notify: smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("notify: send to %s: %w", run.Email, err)
	}

	m.logger.Info("Notification sent",
		zap.String("run_id", run.ID.String()),
		zap.String("status", string(run.Status)),
	)
	return nil
}

func (m *Mailer) body(run *domain.BlastRun) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s user,\n\n", m.cfg.AppName)
	if run.Status == domain.StatusFinished {
		fmt.Fprintf(&b, "Your %s job finished successfully.\n\n", run.Program)
	} else {
		fmt.Fprintf(&b, "Your %s job finished with errors.\n\n", run.Program)
	}
	fmt.Fprintf(&b, "Please visit %s/blast/%s to check results\n\n",
		strings.TrimRight(m.cfg.SiteBaseURL, "/"), run.ID)
	fmt.Fprintf(&b, "Thank you for using %s\n\n", m.cfg.AppName)
	fmt.Fprintf(&b, "The %s development team.\n", m.cfg.AppName)
	return b.String()
}
