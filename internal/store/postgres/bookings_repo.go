package postgres

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/store"
)

type BookingRepo struct {
	db *bun.DB
}

func NewBookingRepo(db *bun.DB) *BookingRepo {
	return &BookingRepo{db: db}
}

func (r *BookingRepo) FindByUID(ctx context.Context, uid string) (domain.Booking, error) {
	return findBooking(ctx, r.db, uid)
}

func (r *BookingRepo) Create(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	var out domain.Booking
	err := r.inBookingTx(ctx, []string{b.UID}, func(ctx context.Context, tx bun.Tx) error {
		created, err := insertBooking(ctx, tx, b)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return domain.Booking{}, err
	}
	return out, nil
}

func (r *BookingRepo) Replace(ctx context.Context, oldUID string, next domain.Booking) (domain.Booking, error) {
	var out domain.Booking
	err := r.inBookingTx(ctx, []string{oldUID, next.UID}, func(ctx context.Context, tx bun.Tx) error {
		old, err := findBooking(ctx, tx, oldUID)
		if err != nil {
			return err
		}
		if err := deleteBooking(ctx, tx, old.ID); err != nil {
			return err
		}
		created, err := insertBooking(ctx, tx, next)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return domain.Booking{}, err
	}
	return out, nil
}

func (r *BookingRepo) UpdateStatus(ctx context.Context, uid string, status domain.BookingStatus) (domain.Booking, error) {
	var out domain.Booking
	err := r.inBookingTx(ctx, []string{uid}, func(ctx context.Context, tx bun.Tx) error {
		b, err := findBooking(ctx, tx, uid)
		if err != nil {
			return err
		}
		b.Status = status
		if _, err := tx.NewUpdate().Model(&b).Column("status", "updated_at").WherePK().Exec(ctx); err != nil {
			return mapError(err)
		}
		out = b
		return nil
	})
	if err != nil {
		return domain.Booking{}, err
	}
	return out, nil
}

func (r *BookingRepo) DeleteCascade(ctx context.Context, uid string) error {
	return r.inBookingTx(ctx, []string{uid}, func(ctx context.Context, tx bun.Tx) error {
		b, err := findBooking(ctx, tx, uid)
		if err != nil {
			return err
		}
		return deleteBooking(ctx, tx, b.ID)
	})
}

// inBookingTx serialises writers on the given uids. Keys are locked in sorted
// order so two replaces touching the same pair cannot deadlock.
func (r *BookingRepo) inBookingTx(ctx context.Context, uids []string, fn func(ctx context.Context, tx bun.Tx) error) error {
	keys := make([]string, 0, len(uids))
	seen := map[string]bool{}
	for _, uid := range uids {
		if uid == "" || seen[uid] {
			continue
		}
		seen[uid] = true
		keys = append(keys, "booking:"+uid)
	}
	sort.Strings(keys)

	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, k := range keys {
			if err := lockKey(ctx, tx, k); err != nil {
				return err
			}
		}
		return fn(ctx, tx)
	})
}

func findBooking(ctx context.Context, db bun.IDB, uid string) (domain.Booking, error) {
	var b domain.Booking
	err := db.NewSelect().
		Model(&b).
		Relation("Attendees", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("a.id ASC")
		}).
		Relation("References", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("r.id ASC")
		}).
		Where("b.uid = ?", uid).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Booking{}, mapError(err)
	}
	return b, nil
}

func insertBooking(ctx context.Context, tx bun.Tx, b domain.Booking) (domain.Booking, error) {
	m := b
	m.ID = uuid.Nil
	m.Attendees = nil
	m.References = nil
	if m.Status == "" {
		m.Status = domain.BookingStatusAccepted
	}
	if _, err := tx.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Booking{}, mapError(err)
	}

	attendees := make([]domain.Attendee, 0, len(b.Attendees))
	for _, a := range b.Attendees {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.Booking{}, err
		}
		a.ID = id
		a.BookingID = m.ID
		attendees = append(attendees, a)
	}
	if len(attendees) > 0 {
		if _, err := tx.NewInsert().Model(&attendees).Exec(ctx); err != nil {
			return domain.Booking{}, mapError(err)
		}
	}

	refs := make([]domain.BookingReference, 0, len(b.References))
	for _, ref := range b.References {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.Booking{}, err
		}
		ref.ID = id
		ref.BookingID = m.ID
		refs = append(refs, ref)
	}
	if len(refs) > 0 {
		if _, err := tx.NewInsert().Model(&refs).Exec(ctx); err != nil {
			return domain.Booking{}, mapError(err)
		}
	}

	m.Attendees = attendees
	m.References = refs
	return m, nil
}

func deleteBooking(ctx context.Context, tx bun.Tx, id uuid.UUID) error {
	if _, err := tx.NewDelete().Model((*domain.BookingReference)(nil)).Where("booking_id = ?", id).Exec(ctx); err != nil {
		return err
	}
	if _, err := tx.NewDelete().Model((*domain.Attendee)(nil)).Where("booking_id = ?", id).Exec(ctx); err != nil {
		return err
	}
	res, err := tx.NewDelete().Model((*domain.Booking)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
