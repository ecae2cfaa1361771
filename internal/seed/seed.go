package seed

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/akarpov/ledger-service/internal/models"
	"github.com/akarpov/ledger-service/internal/repository"
)

const (
	testUsername = "test"
	testEmail    = "test@example.com"
	testPassword = "1234"
)

// Run creates the well-known test user when it is not present yet.
func Run(ctx context.Context, repo *repository.Repository, log *logrus.Logger) error {
	_, err := repo.FindUserByEmail(ctx, testEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user := &models.User{
		Username:     testUsername,
		Email:        testEmail,
		PasswordHash: string(hash),
	}
	if err := repo.CreateUser(ctx, user); err != nil {
		return err
	}

	log.Infof("Test user created: %s", testEmail)
	return nil
}
