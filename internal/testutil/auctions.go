package testutil

import (
	"context"
	"fmt"
	"sort"
	"time"

	auctionserrors "staybid/internal/auctions/errors"
	"staybid/internal/auctions/repository"
	"staybid/pkg/model"
)

// AuctionRepo implements the auction repository on a Store.
type AuctionRepo struct {
	Store *Store
}

var _ repository.AuctionRepository = (*AuctionRepo)(nil)

func (r *AuctionRepo) Create(ctx context.Context, a *model.Auction) error {
	defer r.Store.lock(ctx)()
	for _, other := range r.Store.t.auctions {
		if other.UID == a.UID {
			return fmt.Errorf("duplicate auction uid %s", a.UID)
		}
	}
	a.ID = r.Store.id()
	cp := *a
	r.Store.t.auctions[a.ID] = &cp
	return nil
}

func (r *AuctionRepo) FindByID(ctx context.Context, id int64) (*model.Auction, error) {
	defer r.Store.lock(ctx)()
	if a, ok := r.Store.t.auctions[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, fmt.Errorf("%w: %d", auctionserrors.ErrNotFound, id)
}

func (r *AuctionRepo) FindByUID(ctx context.Context, uid string) (*model.Auction, error) {
	defer r.Store.lock(ctx)()
	return r.byUID(uid)
}

func (r *AuctionRepo) LockByUID(ctx context.Context, uid string) (*model.Auction, error) {
	defer r.Store.lock(ctx)()
	return r.byUID(uid)
}

func (r *AuctionRepo) byUID(uid string) (*model.Auction, error) {
	for _, a := range r.Store.t.auctions {
		if a.UID == uid {
			cp := *a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", auctionserrors.ErrNotFound, uid)
}

func (r *AuctionRepo) NextExpired(ctx context.Context, now time.Time, exclude []int64) (*model.Auction, error) {
	defer r.Store.lock(ctx)()
	skip := make(map[int64]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	var next *model.Auction
	for _, a := range r.sorted(func(a, b *model.Auction) bool { return a.EndTime.Before(b.EndTime) }) {
		if a.Status == model.AuctionActive && !a.EndTime.After(now) && !skip[a.ID] {
			next = a
			break
		}
	}
	if next == nil {
		return nil, fmt.Errorf("%w: expired", auctionserrors.ErrNotFound)
	}
	return next, nil
}

func (r *AuctionRepo) FindOverlappingActive(ctx context.Context, unitID int64, stay model.StayRange) ([]*model.Auction, error) {
	defer r.Store.lock(ctx)()
	var out []*model.Auction
	for _, a := range r.sorted(byID) {
		if a.UnitID == unitID && a.Status == model.AuctionActive && a.Stay().Overlaps(stay) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *AuctionRepo) RecordBid(ctx context.Context, a *model.Auction, bid *model.Bid, price int64, now time.Time) error {
	defer r.Store.lock(ctx)()
	stored, ok := r.Store.t.auctions[a.ID]
	if !ok || stored.Status != model.AuctionActive || stored.CurrentPrice > price {
		return fmt.Errorf("%w: %s", auctionserrors.ErrNotActive, a.UID)
	}
	bid.ID = r.Store.id()
	bid.AuctionID = a.ID
	bid.CreatedAt = now
	cp := *bid
	r.Store.t.bids = append(r.Store.t.bids, &cp)

	bidID := bid.ID
	stored.CurrentPrice = price
	stored.WinningBidID = &bidID
	stored.BidCount++
	stored.UpdatedAt = now
	*a = *stored
	a.WinningBidID = &bidID
	return nil
}

func (r *AuctionRepo) MarkFinished(ctx context.Context, a *model.Auction, status model.AuctionStatus, reason model.EndReason, note string, now time.Time) error {
	defer r.Store.lock(ctx)()
	stored, ok := r.Store.t.auctions[a.ID]
	if !ok || stored.Status != model.AuctionActive {
		return fmt.Errorf("%w: %s", auctionserrors.ErrNotActive, a.UID)
	}
	stored.Status = status
	stored.EndReason = reason
	stored.EndNote = note
	stored.UpdatedAt = now
	a.Status, a.EndReason, a.EndNote, a.UpdatedAt = status, reason, note, now
	return nil
}

func (r *AuctionRepo) FindBid(ctx context.Context, id int64) (*model.Bid, error) {
	defer r.Store.lock(ctx)()
	for _, b := range r.Store.t.bids {
		if b.ID == id {
			cp := *b
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: bid %d", auctionserrors.ErrNotFound, id)
}

// ListBids orders like the Postgres query: newest created_at first, ties by id.
func (r *AuctionRepo) ListBids(ctx context.Context, auctionID int64, limit int) ([]*model.Bid, error) {
	defer r.Store.lock(ctx)()
	var out []*model.Bid
	for _, b := range r.Store.t.bids {
		if b.AuctionID == auctionID {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *AuctionRepo) ListByRegion(ctx context.Context, region repository.Region, code string, status model.AuctionStatus, limit int) ([]*model.Auction, error) {
	defer r.Store.lock(ctx)()
	var out []*model.Auction
	for _, a := range r.sorted(func(a, b *model.Auction) bool { return a.EndTime.Before(b.EndTime) }) {
		regionCode := a.ProvinceCode
		if region == repository.RegionDistrict {
			regionCode = a.DistrictCode
		}
		if regionCode == code && (status == "" || a.Status == status) {
			out = append(out, a)
		}
	}
	return limited(out, limit), nil
}

func (r *AuctionRepo) ListActive(ctx context.Context, order repository.ActiveOrder, now time.Time, limit int) ([]*model.Auction, error) {
	defer r.Store.lock(ctx)()
	less := func(a, b *model.Auction) bool { return a.EndTime.Before(b.EndTime) }
	switch order {
	case repository.OrderFeatured:
		less = func(a, b *model.Auction) bool {
			if a.BidCount != b.BidCount {
				return a.BidCount > b.BidCount
			}
			return a.EndTime.Before(b.EndTime)
		}
	case repository.OrderNewest:
		less = func(a, b *model.Auction) bool { return a.StartTime.After(b.StartTime) }
	}
	var out []*model.Auction
	for _, a := range r.sorted(less) {
		if a.Status == model.AuctionActive && a.EndTime.After(now) {
			out = append(out, a)
		}
	}
	return limited(out, limit), nil
}

var statusRank = map[model.AuctionStatus]int{model.AuctionActive: 0, model.AuctionEnded: 1, model.AuctionCancelled: 2}

func (r *AuctionRepo) AdminList(ctx context.Context, status model.AuctionStatus, limit int, offset int64) ([]*model.Auction, error) {
	defer r.Store.lock(ctx)()
	var out []*model.Auction
	for _, a := range r.sorted(func(a, b *model.Auction) bool {
		if statusRank[a.Status] != statusRank[b.Status] {
			return statusRank[a.Status] < statusRank[b.Status]
		}
		return a.ID > b.ID
	}) {
		if status == "" || a.Status == status {
			out = append(out, a)
		}
	}
	if int(offset) >= len(out) {
		return nil, nil
	}
	return limited(out[offset:], limit), nil
}

func (r *AuctionRepo) Count(ctx context.Context, status model.AuctionStatus) (int64, error) {
	defer r.Store.lock(ctx)()
	var n int64
	for _, a := range r.Store.t.auctions {
		if status == "" || a.Status == status {
			n++
		}
	}
	return n, nil
}

func (r *AuctionRepo) BidsByUser(ctx context.Context, userID string, limit int, offset int64) ([]model.UserBid, error) {
	defer r.Store.lock(ctx)()
	var out []model.UserBid
	for i := len(r.Store.t.bids) - 1; i >= 0; i-- {
		b := r.Store.t.bids[i]
		if b.BidderID != userID {
			continue
		}
		a := r.Store.t.auctions[b.AuctionID]
		out = append(out, model.UserBid{
			BidID:         b.ID,
			Amount:        b.Amount,
			BidTime:       b.CreatedAt,
			AuctionUID:    a.UID,
			AuctionStatus: a.Status,
			CurrentPrice:  a.CurrentPrice,
			EndTime:       a.EndTime,
			Winning:       a.WinningBidID != nil && *a.WinningBidID == b.ID,
		})
	}
	if int(offset) >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *AuctionRepo) CountBidsByUser(ctx context.Context, userID string) (int64, error) {
	defer r.Store.lock(ctx)()
	var n int64
	for _, b := range r.Store.t.bids {
		if b.BidderID == userID {
			n++
		}
	}
	return n, nil
}

func byID(a, b *model.Auction) bool { return a.ID < b.ID }

// sorted returns copies of every auction ordered by less, ties by id.
func (r *AuctionRepo) sorted(less func(a, b *model.Auction) bool) []*model.Auction {
	out := make([]*model.Auction, 0, len(r.Store.t.auctions))
	for _, a := range r.Store.t.auctions {
		cp := *a
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func limited(in []*model.Auction, limit int) []*model.Auction {
	if limit > 0 && len(in) > limit {
		return in[:limit]
	}
	return in
}
