package notify

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/akarpov/ledger-service/internal/config"
	"github.com/akarpov/ledger-service/internal/models"
)

// Sender handles sending emails via SMTP
type Sender struct {
	cfg *config.Config
	log *logrus.Logger
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, log *logrus.Logger) *Sender {
	return &Sender{cfg: cfg, log: log}
}

// SendTransactionNotification mails the owner a confirmation of a recorded
// ledger movement together with the resulting balance.
func (s *Sender) SendTransactionNotification(to, username, txType string, amount, balance decimal.Decimal) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	if txType == models.TypeDeposit {
		e.Subject = "Deposit Notification"
	} else {
		e.Subject = "Withdrawal Notification"
	}

	body := fmt.Sprintf("Dear %s,\n\n", username)
	if txType == models.TypeDeposit {
		body += fmt.Sprintf(
			"A deposit of %s has been recorded on your ledger.\n"+
				"Transaction time: %s\n"+
				"Current balance: %s\n",
			amount.StringFixed(2), time.Now().Format("2006-01-02 15:04:05"), balance.StringFixed(2),
		)
	} else {
		body += fmt.Sprintf(
			"A withdrawal of %s has been recorded on your ledger.\n"+
				"Transaction time: %s\n"+
				"Current balance: %s\n",
			amount.StringFixed(2), time.Now().Format("2006-01-02 15:04:05"), balance.StringFixed(2),
		)
	}
	body += "\nBest regards,\nLedger Service"
	e.Text = []byte(body)

	if err := s.send(e); err != nil {
		s.log.Errorf("Failed to send %s notification to %s: %v", txType, to, err)
		return fmt.Errorf("failed to send %s notification: %w", txType, err)
	}

	s.log.Infof("Email sent to %s: %s", to, e.Subject)
	return nil
}

// SendBalanceDigest mails the daily ledger summary.
func (s *Sender) SendBalanceDigest(to, username string, balance decimal.Decimal, txCount int) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = "Daily Ledger Digest"

	body := fmt.Sprintf(
		"Dear %s,\n\n"+
			"Your ledger summary for %s:\n"+
			"Current balance: %s\n"+
			"Recorded transactions: %d\n"+
			"\nBest regards,\nLedger Service",
		username, time.Now().Format("2006-01-02"), balance.StringFixed(2), txCount,
	)
	e.Text = []byte(body)

	if err := s.send(e); err != nil {
		s.log.Errorf("Failed to send digest to %s: %v", to, err)
		return fmt.Errorf("failed to send digest: %w", err)
	}

	s.log.Infof("Email sent to %s: %s", to, e.Subject)
	return nil
}

func (s *Sender) send(e *email.Email) error {
	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	return e.Send(addr, auth)
}
