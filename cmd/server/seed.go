package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/soaringjerry/qforms/internal/questionnaire"
	"github.com/soaringjerry/qforms/internal/services"
)

// seedQuestionnaire creates the questionnaire defined in path for ownerEmail,
// creating that account if needed. Owners that already have questionnaires
// are left alone, so restarts do not duplicate the seed.
func seedQuestionnaire(ctx context.Context, path, ownerEmail string, users services.UserStore, auth *services.AuthService, qs *services.QuestionnaireService, random io.Reader) (*questionnaire.Questionnaire, error) {
	if ownerEmail == "" {
		return nil, errors.New("seed owner email is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	def, err := questionnaire.LoadDefinition(f)
	if err != nil {
		return nil, err
	}

	owner, err := users.FindUserByEmail(ctx, ownerEmail)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		password, _, err := auth.BootstrapAdmin(ctx, ownerEmail, random)
		if err != nil {
			return nil, fmt.Errorf("create seed owner: %w", err)
		}
		slog.Warn("seed owner password, shown once", slog.String("email", ownerEmail), slog.String("password", password))
		if owner, err = users.FindUserByEmail(ctx, ownerEmail); err != nil {
			return nil, err
		}
		if owner == nil {
			return nil, fmt.Errorf("seed owner %s missing after creation", ownerEmail)
		}
	}

	existing, err := qs.ListByOwner(ctx, owner.ID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		slog.Info("seed skipped, owner already has questionnaires", slog.String("owner", owner.ID), slog.Int("count", len(existing)))
		return nil, nil
	}
	q, err := qs.CreateFromDefinition(ctx, owner.ID, *def)
	if err != nil {
		return nil, fmt.Errorf("seed questionnaire: %w", err)
	}
	slog.Info("seed questionnaire created", slog.String("id", q.ID), slog.String("title", q.Title))
	return q, nil
}
