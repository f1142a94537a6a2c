package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/store"
)

type CredentialRepo struct {
	db     *bun.DB
	sealer *Sealer
}

func NewCredentialRepo(db *bun.DB, sealer *Sealer) *CredentialRepo {
	return &CredentialRepo{db: db, sealer: sealer}
}

func (r *CredentialRepo) ListIntegrations(ctx context.Context, userID int64) ([]domain.Integration, error) {
	var rows []domain.Credential
	err := r.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, mapError(err)
	}

	out := make([]domain.Integration, 0, len(rows))
	for _, c := range rows {
		key, err := r.sealer.Open(c.SealedKey, c.UserID)
		if err != nil {
			return nil, fmt.Errorf("%w: credential %d: %v", store.ErrInvalidCredential, c.ID, err)
		}
		out = append(out, domain.Integration{
			ID:                c.ID,
			Kind:              c.Kind,
			ProviderID:        c.ProviderID,
			Credential:        key,
			SelectedCalendars: c.SelectedCalendars,
		})
	}
	return out, nil
}

// Save seals key and stores it as a new integration for userID.
func (r *CredentialRepo) Save(ctx context.Context, userID int64, kind domain.ProviderKind, providerID string, key []byte, selectedCalendars []string) (int64, error) {
	sealed, err := r.sealer.Seal(key, userID)
	if err != nil {
		return 0, err
	}
	c := domain.Credential{
		UserID:            userID,
		Kind:              kind,
		ProviderID:        providerID,
		SealedKey:         sealed,
		SelectedCalendars: selectedCalendars,
	}
	if _, err := r.db.NewInsert().Model(&c).Returning("id").Exec(ctx); err != nil {
		return 0, mapError(err)
	}
	return c.ID, nil
}
