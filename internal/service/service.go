package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/akarpov/ledger-service/internal/models"
	"github.com/akarpov/ledger-service/internal/repository"
	"github.com/akarpov/ledger-service/internal/token"
)

// maxAmount is the upper bound for a single transaction amount.
var maxAmount = decimal.NewFromInt(100000)

// Notifier delivers out-of-band confirmations of ledger changes.
type Notifier interface {
	SendTransactionNotification(to, username, txType string, amount, balance decimal.Decimal) error
}

// Snapshot is the full view of a user's account: the user record, the derived
// balance and the transaction history, newest first.
type Snapshot struct {
	User         *models.User         `json:"user"`
	Balance      decimal.Decimal      `json:"balance"`
	Transactions []models.Transaction `json:"transactions"`
}

// Service handles business logic
type Service struct {
	repo     *repository.Repository
	tokens   *token.Service
	notifier Notifier
	log      *logrus.Logger
}

// NewService initializes a new service. notifier may be nil, in which case no
// mail is sent.
func NewService(repo *repository.Repository, tokens *token.Service, notifier Notifier, log *logrus.Logger) *Service {
	return &Service{repo: repo, tokens: tokens, notifier: notifier, log: log}
}

// Register creates a new user with hashed password
func (s *Service) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	if username == "" {
		return nil, &ValidationError{Field: "username", Message: "must not be empty"}
	}
	if email == "" {
		return nil, &ValidationError{Field: "email", Message: "must not be empty"}
	}
	if password == "" {
		return nil, &ValidationError{Field: "password", Message: "must not be empty"}
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, &ValidationError{Field: "email", Message: "already registered"}
		}
		return nil, err
	}

	s.log.Infof("User registered: %s", user.Email)
	return user, nil
}

// Login authenticates a user and returns a signed session token. Missing
// users and wrong passwords produce the same error.
func (s *Service) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	if email == "" {
		return "", nil, &ValidationError{Field: "email", Message: "must not be empty"}
	}
	if password == "" {
		return "", nil, &ValidationError{Field: "password", Message: "must not be empty"}
	}

	user, err := s.repo.FindUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	tok, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.Infof("User logged in: %s", user.Email)
	return tok, user, nil
}

// Snapshot resolves the caller's user record, transaction history and derived
// balance. Returns ErrNotFound if the user row has vanished since the token
// was issued.
func (s *Service) Snapshot(ctx context.Context, userID int64) (*Snapshot, error) {
	user, err := s.repo.FindUserByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	txs, err := s.repo.ListTransactionsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		User:         user,
		Balance:      BalanceOf(txs),
		Transactions: txs,
	}, nil
}

// CreateTransaction records a deposit or withdrawal for userID and returns
// the new transaction id. A withdrawal that would drive the balance negative
// is rejected; the check is advisory at call time, concurrent creations from
// other sessions can still interleave.
func (s *Service) CreateTransaction(ctx context.Context, userID int64, txType string, amount decimal.Decimal) (int64, error) {
	if txType != models.TypeDeposit && txType != models.TypeWithdraw {
		return 0, &ValidationError{Field: "type", Message: "must be 'deposit' or 'withdraw'"}
	}
	if err := validateAmount(amount); err != nil {
		return 0, err
	}

	if txType == models.TypeWithdraw {
		txs, err := s.repo.ListTransactionsByUser(ctx, userID)
		if err != nil {
			return 0, err
		}
		if BalanceOf(txs).Sub(amount).IsNegative() {
			return 0, &ValidationError{Field: "amount", Message: "insufficient balance"}
		}
	}

	tx := &models.Transaction{
		UserID: userID,
		Type:   txType,
		Amount: amount,
	}
	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		return 0, err
	}

	s.log.Infof("Transaction recorded: user=%d type=%s id=%d", userID, txType, tx.ID)
	s.notifyTransaction(ctx, userID, tx)
	return tx.ID, nil
}

// UpdateTransactionAmount amends the amount of a transaction owned by
// userID. Only deposit transactions may be amended, and the resulting
// balance must stay non-negative.
func (s *Service) UpdateTransactionAmount(ctx context.Context, userID, txID int64, amount decimal.Decimal) error {
	if err := validateAmount(amount); err != nil {
		return err
	}

	txs, err := s.repo.ListTransactionsByUser(ctx, userID)
	if err != nil {
		return err
	}
	var target *models.Transaction
	for i := range txs {
		if txs[i].ID == txID {
			target = &txs[i]
			break
		}
	}
	if target == nil {
		return ErrNotFound
	}
	if target.Type != models.TypeDeposit {
		return &ValidationError{Field: "id", Message: "only deposits can be amended"}
	}
	if BalanceOf(txs).Sub(target.Amount).Add(amount).IsNegative() {
		return &ValidationError{Field: "amount", Message: "amendment would make balance negative"}
	}

	changed, err := s.repo.UpdateTransactionAmount(ctx, txID, userID, amount)
	if err != nil {
		return err
	}
	if !changed {
		return ErrNotFound
	}

	s.log.Infof("Transaction amended: user=%d id=%d", userID, txID)
	return nil
}

// DeleteTransaction removes a transaction owned by userID. Deleting a
// deposit is rejected when the remaining history would fold to a negative
// balance.
func (s *Service) DeleteTransaction(ctx context.Context, userID, txID int64) error {
	txs, err := s.repo.ListTransactionsByUser(ctx, userID)
	if err != nil {
		return err
	}
	var target *models.Transaction
	for i := range txs {
		if txs[i].ID == txID {
			target = &txs[i]
			break
		}
	}
	if target == nil {
		return ErrNotFound
	}
	if target.Type == models.TypeDeposit && BalanceOf(txs).Sub(target.Amount).IsNegative() {
		return &ValidationError{Field: "id", Message: "deletion would make balance negative"}
	}

	changed, err := s.repo.DeleteTransaction(ctx, txID, userID)
	if err != nil {
		return err
	}
	if !changed {
		return ErrNotFound
	}

	s.log.Infof("Transaction deleted: user=%d id=%d", userID, txID)
	return nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &ValidationError{Field: "amount", Message: "must be positive"}
	}
	if amount.GreaterThan(maxAmount) {
		return &ValidationError{Field: "amount", Message: "must not exceed 100000"}
	}
	return nil
}

// notifyTransaction mails the owner a confirmation, best effort. Failures
// are logged and never surfaced to the caller.
func (s *Service) notifyTransaction(ctx context.Context, userID int64, tx *models.Transaction) {
	if s.notifier == nil {
		return
	}
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		s.log.Errorf("Notification skipped, user lookup failed: %v", err)
		return
	}
	txs, err := s.repo.ListTransactionsByUser(ctx, userID)
	if err != nil {
		s.log.Errorf("Notification skipped, history lookup failed: %v", err)
		return
	}
	balance := BalanceOf(txs)
	go func() {
		if err := s.notifier.SendTransactionNotification(user.Email, user.Username, tx.Type, tx.Amount, balance); err != nil {
			s.log.Errorf("Failed to send transaction notification to %s: %v", user.Email, err)
		}
	}()
}
