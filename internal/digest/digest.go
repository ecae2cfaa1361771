package digest

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/akarpov/ledger-service/internal/repository"
	"github.com/akarpov/ledger-service/internal/service"
)

// Notifier is the slice of the mailer the digest job needs.
type Notifier interface {
	SendBalanceDigest(to, username string, balance decimal.Decimal, txCount int) error
}

// Job periodically mails every user a summary of their ledger.
type Job struct {
	repo     *repository.Repository
	notifier Notifier
	log      *logrus.Logger
	cron     *cron.Cron
}

// NewJob creates a digest job; Start must be called to schedule it.
func NewJob(repo *repository.Repository, notifier Notifier, log *logrus.Logger) *Job {
	return &Job{repo: repo, notifier: notifier, log: log}
}

// Start schedules the job under spec (standard cron format) and starts the
// scheduler.
func (j *Job) Start(spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, j.run); err != nil {
		return err
	}
	c.Start()
	j.cron = c
	j.log.Infof("Digest job scheduled: %s", spec)
	return nil
}

// Stop halts the scheduler; a run already in flight finishes.
func (j *Job) Stop() {
	if j.cron != nil {
		j.cron.Stop()
	}
}

func (j *Job) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	users, err := j.repo.ListUsers(ctx)
	if err != nil {
		j.log.Errorf("Digest run aborted: %v", err)
		return
	}

	for _, u := range users {
		txs, err := j.repo.ListTransactionsByUser(ctx, u.ID)
		if err != nil {
			j.log.Errorf("Digest skipped for %s: %v", u.Email, err)
			continue
		}
		balance := service.BalanceOf(txs)
		if err := j.notifier.SendBalanceDigest(u.Email, u.Username, balance, len(txs)); err != nil {
			j.log.Errorf("Digest delivery failed for %s: %v", u.Email, err)
		}
	}
}
