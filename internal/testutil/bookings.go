package testutil

import (
	"context"
	"fmt"
	"sort"
	"time"

	bookingserrors "staybid/internal/bookings/errors"
	"staybid/internal/bookings/repository"
	"staybid/pkg/model"
)

// BookingRepo implements the booking repository on a Store.
// BookingRepo implements the booking repository on a Store. ConfirmFunc,
// when set, fails Confirm with its error.
type BookingRepo struct {
	Store       *Store
	ConfirmFunc func(id int64) error
}

var _ repository.BookingRepository = (*BookingRepo)(nil)

func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	defer r.Store.lock(ctx)()
	b.ID = r.Store.id()
	cp := *b
	r.Store.t.bookings[b.ID] = &cp
	return nil
}

func (r *BookingRepo) FindByID(ctx context.Context, id int64) (*model.Booking, error) {
	defer r.Store.lock(ctx)()
	if b, ok := r.Store.t.bookings[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, fmt.Errorf("%w: %d", bookingserrors.ErrNotFound, id)
}

func (r *BookingRepo) FindPendingForAuction(ctx context.Context, auctionID int64, guestID string, source model.BookingSource) (*model.Booking, error) {
	defer r.Store.lock(ctx)()
	for _, b := range r.all() {
		if b.AuctionID != nil && *b.AuctionID == auctionID && b.GuestID == guestID &&
			b.Source == source && b.Status == model.BookingPending {
			return b, nil
		}
	}
	return nil, bookingserrors.ErrNotFound
}

func (r *BookingRepo) Confirm(ctx context.Context, id int64, paymentMethodRef string, now time.Time) (bool, error) {
	if r.ConfirmFunc != nil {
		if err := r.ConfirmFunc(id); err != nil {
			return false, err
		}
	}
	defer r.Store.lock(ctx)()
	b, ok := r.Store.t.bookings[id]
	if !ok || b.Status != model.BookingPending {
		return false, nil
	}
	ref, paidAt := paymentMethodRef, now
	b.Status = model.BookingConfirmed
	b.PaymentMethodRef = &ref
	b.PaidAt = &paidAt
	b.HoldExpiresAt = nil
	b.UpdatedAt = now
	return true, nil
}

func (r *BookingRepo) Transition(ctx context.Context, id int64, from, to model.BookingStatus, note string, now time.Time) (bool, error) {
	defer r.Store.lock(ctx)()
	b, ok := r.Store.t.bookings[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	if note != "" {
		b.Note = note
	}
	b.UpdatedAt = now
	return true, nil
}

func (r *BookingRepo) UpdateHold(ctx context.Context, id int64, holdExpiresAt, now time.Time) error {
	defer r.Store.lock(ctx)()
	if b, ok := r.Store.t.bookings[id]; ok && b.Status == model.BookingPending {
		expiry := holdExpiresAt
		b.HoldExpiresAt = &expiry
		b.UpdatedAt = now
	}
	return nil
}

func (r *BookingRepo) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	defer r.Store.lock(ctx)()
	var ids []int64
	for _, b := range r.all() {
		if b.Status == model.BookingPending && b.HoldExpiresAt != nil && b.HoldExpiresAt.Before(now) {
			ids = append(ids, b.ID)
		}
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (r *BookingRepo) CompleteFinished(ctx context.Context, today, now time.Time) ([]int64, error) {
	defer r.Store.lock(ctx)()
	var ids []int64
	for _, b := range r.all() {
		if b.Status == model.BookingConfirmed && !b.StayEnd.After(today) {
			stored := r.Store.t.bookings[b.ID]
			stored.Status = model.BookingCompleted
			stored.UpdatedAt = now
			ids = append(ids, b.ID)
		}
	}
	return ids, nil
}

func (r *BookingRepo) ListByGuest(ctx context.Context, guestID string, limit int, offset int64) ([]*model.Booking, error) {
	defer r.Store.lock(ctx)()
	return r.page(func(b *model.Booking) bool { return b.GuestID == guestID }, limit, offset), nil
}

func (r *BookingRepo) CountByGuest(ctx context.Context, guestID string) (int64, error) {
	defer r.Store.lock(ctx)()
	return int64(len(r.page(func(b *model.Booking) bool { return b.GuestID == guestID }, 0, 0))), nil
}

func (r *BookingRepo) AdminList(ctx context.Context, status model.BookingStatus, limit int, offset int64) ([]*model.Booking, error) {
	defer r.Store.lock(ctx)()
	return r.page(func(b *model.Booking) bool { return status == "" || b.Status == status }, limit, offset), nil
}

func (r *BookingRepo) Count(ctx context.Context, status model.BookingStatus) (int64, error) {
	defer r.Store.lock(ctx)()
	return int64(len(r.page(func(b *model.Booking) bool { return status == "" || b.Status == status }, 0, 0))), nil
}

// all returns copies of every booking in id order.
func (r *BookingRepo) all() []*model.Booking {
	out := make([]*model.Booking, 0, len(r.Store.t.bookings))
	for _, b := range r.Store.t.bookings {
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// page filters newest first.
func (r *BookingRepo) page(match func(*model.Booking) bool, limit int, offset int64) []*model.Booking {
	all := r.all()
	var out []*model.Booking
	for i := len(all) - 1; i >= 0; i-- {
		if match(all[i]) {
			out = append(out, all[i])
		}
	}
	if int(offset) >= len(out) {
		return nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
