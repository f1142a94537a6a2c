package postgres

import (
	"context"

	"github.com/uptrace/bun"

	"slotkeeper/backend/internal/domain"
)

type ProfileRepo struct {
	db *bun.DB
}

func NewProfileRepo(db *bun.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

func (r *ProfileRepo) FindUser(ctx context.Context, username string) (domain.User, error) {
	var u domain.User
	err := r.db.NewSelect().Model(&u).Where("u.username = ?", username).Limit(1).Scan(ctx)
	if err != nil {
		return domain.User{}, mapError(err)
	}
	return u, nil
}

func (r *ProfileRepo) FindEventType(ctx context.Context, userID, eventTypeID int64) (domain.EventType, error) {
	var et domain.EventType
	err := r.db.NewSelect().
		Model(&et).
		Where("et.id = ?", eventTypeID).
		Where("et.user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.EventType{}, mapError(err)
	}
	return et, nil
}
