package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"webgate/internal/person/models"
	"webgate/internal/platform/config"
	id "webgate/pkg/domain"
)

type seedStore interface {
	Save(ctx context.Context, person *models.Person) error
	Count(ctx context.Context) (int, error)
}

// seedAdmin creates an administrator at the placeholder domain when the store
// is empty, so a fresh install has someone to log in as. The gate keeps
// warning that account until its email is changed.
func seedAdmin(ctx context.Context, people seedStore, cfg config.Server, log *slog.Logger) error {
	n, err := people.Count(ctx)
	if err != nil {
		return fmt.Errorf("count people: %w", err)
	}
	if n > 0 {
		return nil
	}

	password := cfg.SeedAdminPassword
	generated := password == ""
	if generated {
		password = uuid.NewString()
	}

	now := time.Now().UTC()
	admin := &models.Person{
		ID:        id.NewPersonID(),
		Name:      "Administrator",
		Email:     "admin@" + cfg.Gate.PlaceholderDomain,
		Language:  cfg.Locale.Default,
		Active:    true,
		Admin:     true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := admin.SetPassword(password); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if err := people.Save(ctx, admin); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	attrs := []any{"email", admin.Email, "person_id", admin.ID.String()}
	if generated {
		attrs = append(attrs, "password", password)
	}
	log.Warn("seeded placeholder administrator; change its email and password", attrs...)
	return nil
}
