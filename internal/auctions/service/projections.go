package service

import (
	"context"
	"fmt"

	"staybid/internal/auctions/repository"
	"staybid/pkg/config"
	apperrors "staybid/pkg/errors"
	"staybid/pkg/model"
	"staybid/pkg/sanitizer"

	"golang.org/x/sync/errgroup"
)

// Projections are lock-free reads over auctions and bids.
type Projections interface {
	GetByUID(ctx context.Context, auctionUID string) (*AuctionDetail, error)
	ListByProvince(ctx context.Context, code string, status model.AuctionStatus, limit int) ([]*model.Auction, error)
	ListByDistrict(ctx context.Context, code string, status model.AuctionStatus, limit int) ([]*model.Auction, error)
	EndingSoon(ctx context.Context, limit int) ([]*model.Auction, error)
	Featured(ctx context.Context, limit int) ([]*model.Auction, error)
	Newest(ctx context.Context, limit int) ([]*model.Auction, error)
	AdminList(ctx context.Context, status model.AuctionStatus, limit int, offset int64) ([]*model.Auction, int64, error)
	BidsByUser(ctx context.Context, userID string, limit int, offset int64) ([]model.UserBid, int64, error)
}

type UnitSummary struct {
	Name      string `json:"name"`
	BasePrice int64  `json:"basePrice"`
	Currency  string `json:"currency"`
}

type AuctionDetail struct {
	Auction    *model.Auction `json:"auction"`
	Unit       UnitSummary    `json:"unit"`
	BidHistory []*model.Bid   `json:"bidHistory"`
}

const bidHistoryLimit = 500

// GetByUID reads the auction, then the unit and the bid history concurrently.
func (s *auctionService) GetByUID(ctx context.Context, auctionUID string) (*AuctionDetail, error) {
	auction, err := s.find(ctx, auctionUID)
	if err != nil {
		return nil, err
	}

	detail := &AuctionDetail{Auction: auction}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		unit, err := s.catalog.FindByID(gctx, auction.UnitID)
		if err != nil {
			return err
		}
		detail.Unit = UnitSummary{Name: unit.Name, BasePrice: unit.BasePrice, Currency: unit.Currency}
		return nil
	})
	g.Go(func() error {
		bids, err := s.repo.ListBids(gctx, auction.ID, bidHistoryLimit)
		if err != nil {
			s.cfg.Log.Error("Failed to list bids", "auction_uid", auction.UID, "error", err)
			return apperrors.Internal("Failed to retrieve bid history", err)
		}
		detail.BidHistory = bids
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if detail.BidHistory == nil {
		detail.BidHistory = []*model.Bid{}
	}
	return detail, nil
}

func (s *auctionService) ListByProvince(ctx context.Context, code string, status model.AuctionStatus, limit int) ([]*model.Auction, error) {
	return s.listByRegion(ctx, repository.RegionProvince, code, status, limit)
}

func (s *auctionService) ListByDistrict(ctx context.Context, code string, status model.AuctionStatus, limit int) ([]*model.Auction, error) {
	return s.listByRegion(ctx, repository.RegionDistrict, code, status, limit)
}

func (s *auctionService) listByRegion(ctx context.Context, region repository.Region, code string, status model.AuctionStatus, limit int) ([]*model.Auction, error) {
	code = sanitizer.NormalizeRegionCode(code)
	if code == "" {
		return nil, apperrors.InvalidInput("region code cannot be empty")
	}
	if status == "" {
		status = model.AuctionActive
	}
	if !status.Valid() {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown auction status: %s", status))
	}
	auctions, err := s.repo.ListByRegion(ctx, region, code, status, config.NormalizeListLimit(limit))
	if err != nil {
		s.cfg.Log.Error("Failed to list auctions by region", "region", string(region), "code", code, "error", err)
		return nil, apperrors.Internal("Failed to retrieve auctions", err)
	}
	return auctions, nil
}

func (s *auctionService) EndingSoon(ctx context.Context, limit int) ([]*model.Auction, error) {
	return s.listActive(ctx, repository.OrderEndingSoon, limit)
}

func (s *auctionService) Featured(ctx context.Context, limit int) ([]*model.Auction, error) {
	return s.listActive(ctx, repository.OrderFeatured, limit)
}

func (s *auctionService) Newest(ctx context.Context, limit int) ([]*model.Auction, error) {
	return s.listActive(ctx, repository.OrderNewest, limit)
}

func (s *auctionService) listActive(ctx context.Context, order repository.ActiveOrder, limit int) ([]*model.Auction, error) {
	auctions, err := s.repo.ListActive(ctx, order, s.now(), config.NormalizeListLimit(limit))
	if err != nil {
		s.cfg.Log.Error("Failed to list active auctions", "order", int(order), "error", err)
		return nil, apperrors.Internal("Failed to retrieve auctions", err)
	}
	return auctions, nil
}

func (s *auctionService) AdminList(ctx context.Context, status model.AuctionStatus, limit int, offset int64) ([]*model.Auction, int64, error) {
	if status != "" && !status.Valid() {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("unknown auction status: %s", status))
	}
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var auctions []*model.Auction
	var total int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		auctions, err = s.repo.AdminList(gctx, status, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to list auctions", "error", err)
			return apperrors.Internal("Failed to retrieve auctions", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		total, err = s.repo.Count(gctx, status)
		if err != nil {
			s.cfg.Log.Error("Failed to count auctions", "error", err)
			return apperrors.Internal("Failed to count auctions", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return auctions, total, nil
}

func (s *auctionService) BidsByUser(ctx context.Context, userID string, limit int, offset int64) ([]model.UserBid, int64, error) {
	if userID == "" {
		return nil, 0, apperrors.InvalidInput("User ID cannot be empty")
	}
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var bids []model.UserBid
	var total int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bids, err = s.repo.BidsByUser(gctx, userID, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to list user bids", "user_id", userID, "error", err)
			return apperrors.Internal("Failed to retrieve bids", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		total, err = s.repo.CountBidsByUser(gctx, userID)
		if err != nil {
			return apperrors.Internal("Failed to count bids", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return bids, total, nil
}
