package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	auctionserrors "staybid/internal/auctions/errors"
	"staybid/pkg/config"
	"staybid/pkg/db/postgres"
	"staybid/pkg/model"

	"github.com/uptrace/bun"
)

type Region string

const (
	RegionProvince Region = "province_code"
	RegionDistrict Region = "district_code"
)

// ActiveOrder selects one of the public projections over active auctions.
type ActiveOrder int

const (
	OrderEndingSoon ActiveOrder = iota
	OrderFeatured
	OrderNewest
)

type AuctionRepository interface {
	Create(ctx context.Context, a *model.Auction) error
	FindByID(ctx context.Context, id int64) (*model.Auction, error)
	FindByUID(ctx context.Context, uid string) (*model.Auction, error)

	// LockByUID takes the exclusive lease on the auction row until the
	// surrounding transaction ends.
	LockByUID(ctx context.Context, uid string) (*model.Auction, error)
	// NextExpired leases one active auction whose window closed, skipping rows
	// leased by someone else.
	NextExpired(ctx context.Context, now time.Time, exclude []int64) (*model.Auction, error)
	FindOverlappingActive(ctx context.Context, unitID int64, r model.StayRange) ([]*model.Auction, error)

	RecordBid(ctx context.Context, a *model.Auction, bid *model.Bid, price int64, now time.Time) error
	MarkFinished(ctx context.Context, a *model.Auction, status model.AuctionStatus, reason model.EndReason, note string, now time.Time) error

	FindBid(ctx context.Context, id int64) (*model.Bid, error)
	ListBids(ctx context.Context, auctionID int64, limit int) ([]*model.Bid, error)
	ListByRegion(ctx context.Context, region Region, code string, status model.AuctionStatus, limit int) ([]*model.Auction, error)
	ListActive(ctx context.Context, order ActiveOrder, now time.Time, limit int) ([]*model.Auction, error)
	AdminList(ctx context.Context, status model.AuctionStatus, limit int, offset int64) ([]*model.Auction, error)
	Count(ctx context.Context, status model.AuctionStatus) (int64, error)
	BidsByUser(ctx context.Context, userID string, limit int, offset int64) ([]model.UserBid, error)
	CountBidsByUser(ctx context.Context, userID string) (int64, error)
}

type postgresAuctionRepository struct {
	cfg *config.Config
	db  *bun.DB
}

func NewPostgresAuctionRepository(cfg *config.Config, db *bun.DB) AuctionRepository {
	return &postgresAuctionRepository{cfg: cfg, db: db}
}

func (r *postgresAuctionRepository) conn(ctx context.Context) bun.IDB {
	return postgres.Conn(ctx, r.db)
}

func (r *postgresAuctionRepository) Create(ctx context.Context, a *model.Auction) error {
	if _, err := r.conn(ctx).NewInsert().Model(a).Returning("*").Exec(ctx); err != nil {
		return fmt.Errorf("failed to create auction: %w", err)
	}
	r.cfg.Log.Debug("Auction inserted", "type", "db", "auction_uid", a.UID, "unit_id", a.UnitID)
	return nil
}

func (r *postgresAuctionRepository) FindByID(ctx context.Context, id int64) (*model.Auction, error) {
	return r.findOne(ctx, r.conn(ctx).NewSelect().Where("id = ?", id), fmt.Sprint(id))
}

func (r *postgresAuctionRepository) FindByUID(ctx context.Context, uid string) (*model.Auction, error) {
	return r.findOne(ctx, r.conn(ctx).NewSelect().Where("uid = ?", uid), uid)
}

func (r *postgresAuctionRepository) LockByUID(ctx context.Context, uid string) (*model.Auction, error) {
	return r.findOne(ctx, r.conn(ctx).NewSelect().Where("uid = ?", uid).For("UPDATE"), uid)
}

func (r *postgresAuctionRepository) NextExpired(ctx context.Context, now time.Time, exclude []int64) (*model.Auction, error) {
	q := r.conn(ctx).NewSelect().
		Where("status = ?", model.AuctionActive).
		Where("end_time <= ?", now).
		Order("end_time ASC").
		Limit(1).
		For("UPDATE SKIP LOCKED")
	if len(exclude) > 0 {
		q = q.Where("id NOT IN (?)", bun.In(exclude))
	}
	return r.findOne(ctx, q, "expired")
}

func (r *postgresAuctionRepository) findOne(ctx context.Context, q *bun.SelectQuery, ref string) (*model.Auction, error) {
	a := new(model.Auction)
	if err := q.Model(a).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", auctionserrors.ErrNotFound, ref)
		}
		return nil, fmt.Errorf("failed to find auction: %w", err)
	}
	return a, nil
}

func (r *postgresAuctionRepository) FindOverlappingActive(ctx context.Context, unitID int64, stay model.StayRange) ([]*model.Auction, error) {
	var auctions []*model.Auction
	err := r.conn(ctx).NewSelect().
		Model(&auctions).
		Where("unit_id = ?", unitID).
		Where("status = ?", model.AuctionActive).
		Where("stay_start < ? AND ? < stay_end", stay.End, stay.Start).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find overlapping auctions: %w", err)
	}
	return auctions, nil
}

// RecordBid inserts bid and moves the auction to price with bid as the winner.
// The update is guarded on the auction still being active.
func (r *postgresAuctionRepository) RecordBid(ctx context.Context, a *model.Auction, bid *model.Bid, price int64, now time.Time) error {
	bid.AuctionID = a.ID
	bid.CreatedAt = now
	if _, err := r.conn(ctx).NewInsert().Model(bid).Returning("id").Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}

	res, err := r.conn(ctx).NewUpdate().
		Model((*model.Auction)(nil)).
		Set("current_price = ?", price).
		Set("winning_bid_id = ?", bid.ID).
		Set("bid_count = bid_count + 1").
		Set("updated_at = ?", now).
		Where("id = ?", a.ID).
		Where("status = ?", model.AuctionActive).
		Where("current_price <= ?", price).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update auction price: %w", err)
	}
	if err := expectOne(res, a.UID); err != nil {
		return err
	}

	a.CurrentPrice = price
	a.WinningBidID = &bid.ID
	a.BidCount++
	a.UpdatedAt = now
	return nil
}

func (r *postgresAuctionRepository) MarkFinished(ctx context.Context, a *model.Auction, status model.AuctionStatus, reason model.EndReason, note string, now time.Time) error {
	res, err := r.conn(ctx).NewUpdate().
		Model((*model.Auction)(nil)).
		Set("status = ?", status).
		Set("end_reason = ?", reason).
		Set("end_note = ?", note).
		Set("updated_at = ?", now).
		Where("id = ?", a.ID).
		Where("status = ?", model.AuctionActive).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to finish auction: %w", err)
	}
	if err := expectOne(res, a.UID); err != nil {
		return err
	}

	a.Status = status
	a.EndReason = reason
	a.EndNote = note
	a.UpdatedAt = now
	r.cfg.Log.Debug("Auction finished", "type", "db", "auction_uid", a.UID, "status", status, "reason", reason)
	return nil
}

func expectOne(res sql.Result, uid string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", auctionserrors.ErrNotActive, uid)
	}
	return nil
}

func (r *postgresAuctionRepository) FindBid(ctx context.Context, id int64) (*model.Bid, error) {
	bid := new(model.Bid)
	if err := r.conn(ctx).NewSelect().Model(bid).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: bid %d", auctionserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find bid: %w", err)
	}
	return bid, nil
}

func (r *postgresAuctionRepository) ListBids(ctx context.Context, auctionID int64, limit int) ([]*model.Bid, error) {
	var bids []*model.Bid
	q := r.conn(ctx).NewSelect().
		Model(&bids).
		Where("auction_id = ?", auctionID).
		OrderExpr("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	return bids, nil
}

func (r *postgresAuctionRepository) ListByRegion(ctx context.Context, region Region, code string, status model.AuctionStatus, limit int) ([]*model.Auction, error) {
	var auctions []*model.Auction
	q := r.conn(ctx).NewSelect().
		Model(&auctions).
		Where("? = ?", bun.Ident(string(region)), code).
		Order("end_time ASC").
		Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list auctions by %s: %w", region, err)
	}
	return auctions, nil
}

func (r *postgresAuctionRepository) ListActive(ctx context.Context, order ActiveOrder, now time.Time, limit int) ([]*model.Auction, error) {
	var auctions []*model.Auction
	q := r.conn(ctx).NewSelect().
		Model(&auctions).
		Where("status = ?", model.AuctionActive).
		Where("end_time > ?", now).
		Limit(limit)
	switch order {
	case OrderFeatured:
		q = q.OrderExpr("bid_count DESC, end_time ASC")
	case OrderNewest:
		q = q.OrderExpr("start_time DESC")
	default:
		q = q.OrderExpr("end_time ASC")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list active auctions: %w", err)
	}
	return auctions, nil
}

func (r *postgresAuctionRepository) AdminList(ctx context.Context, status model.AuctionStatus, limit int, offset int64) ([]*model.Auction, error) {
	var auctions []*model.Auction
	q := r.conn(ctx).NewSelect().
		Model(&auctions).
		OrderExpr("CASE status WHEN 'active' THEN 0 WHEN 'ended' THEN 1 ELSE 2 END").
		OrderExpr("created_at DESC").
		Limit(limit).
		Offset(int(offset))
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list auctions: %w", err)
	}
	return auctions, nil
}

func (r *postgresAuctionRepository) Count(ctx context.Context, status model.AuctionStatus) (int64, error) {
	q := r.conn(ctx).NewSelect().Model((*model.Auction)(nil))
	if status != "" {
		q = q.Where("status = ?", status)
	}
	n, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count auctions: %w", err)
	}
	return int64(n), nil
}

func (r *postgresAuctionRepository) BidsByUser(ctx context.Context, userID string, limit int, offset int64) ([]model.UserBid, error) {
	var bids []model.UserBid
	err := r.conn(ctx).NewSelect().
		TableExpr("bids AS b").
		ColumnExpr("b.id AS bid_id, b.amount, b.created_at").
		ColumnExpr("a.uid AS auction_uid, a.status AS auction_status, a.current_price, a.end_time").
		ColumnExpr("COALESCE(a.winning_bid_id = b.id, false) AS winning").
		Join("JOIN auctions AS a ON a.id = b.auction_id").
		Where("b.bidder_id = ?", userID).
		OrderExpr("b.created_at DESC, b.id DESC").
		Limit(limit).
		Offset(int(offset)).
		Scan(ctx, &bids)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids of user %s: %w", userID, err)
	}
	return bids, nil
}

func (r *postgresAuctionRepository) CountBidsByUser(ctx context.Context, userID string) (int64, error) {
	n, err := r.conn(ctx).NewSelect().
		Model((*model.Bid)(nil)).
		Where("bidder_id = ?", userID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count bids of user %s: %w", userID, err)
	}
	return int64(n), nil
}
