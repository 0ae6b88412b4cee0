package handler

import (
	"context"
	"net/http"
	"time"

	"staybid/internal/auctions/service"
	"staybid/internal/auctions/validator"
	apperrors "staybid/pkg/errors"
	httputil "staybid/pkg/http"
	"staybid/pkg/logger"
	"staybid/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// Created is the body returned by POST /auction/create.
type Created struct {
	AuctionUID    string    `json:"auctionUid"`
	EndTime       time.Time `json:"endTime"`
	StartingPrice int64     `json:"startingPrice"`
	CurrentPrice  int64     `json:"currentPrice"`
	BidIncrement  int64     `json:"bidIncrement"`
	Currency      string    `json:"currency"`
}

type AuctionHandler struct {
	service service.AuctionService
	log     *logger.Logger
}

func NewAuctionHandler(service service.AuctionService, log *logger.Logger) *AuctionHandler {
	return &AuctionHandler{
		service: service,
		log:     log,
	}
}

// Open serves POST /auction/preview and POST /auction/create, which share a
// wildcard with the per-auction routes.
func (h *AuctionHandler) Open(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	switch ps.ByName("ref") {
	case "preview":
		h.Preview(w, r, ps)
	case "create":
		h.Create(w, r, ps)
	default:
		h.writeError(w, "Open", apperrors.NotFound("Route"))
	}
}

func (h *AuctionHandler) Preview(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req validator.PreviewRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Preview", err)
		return
	}
	preview, err := h.service.PreviewCreate(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Preview", err)
		return
	}
	h.writeSuccess(w, "Preview", preview)
}

func (h *AuctionHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req validator.CreateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Create", err)
		return
	}
	if req.UserID == "" {
		req.UserID = httputil.UserID(r)
	}
	auction, err := h.service.CreateAuction(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}
	created := Created{
		AuctionUID:    auction.UID,
		EndTime:       auction.EndTime,
		StartingPrice: auction.StartingPrice,
		CurrentPrice:  auction.CurrentPrice,
		BidIncrement:  auction.BidIncrement,
		Currency:      auction.Currency,
	}
	if err := httputil.WriteCreated(w, created); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *AuctionHandler) GetByUID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	detail, err := h.service.GetByUID(r.Context(), ps.ByName("auctionUid"))
	if err != nil {
		h.writeError(w, "GetByUID", err)
		return
	}
	h.writeSuccess(w, "GetByUID", detail)
}

func (h *AuctionHandler) Bid(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req validator.BidRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Bid", err)
		return
	}
	if req.UserID == "" {
		req.UserID = httputil.UserID(r)
	}
	result, err := h.service.PlaceBid(r.Context(), ps.ByName("ref"), &req)
	if err != nil {
		h.writeError(w, "Bid", err)
		return
	}
	if err := httputil.WriteCreated(w, result); err != nil {
		h.log.Error("failed to write created response", "handler", "Bid", "operation", "WriteCreated", "error", err)
	}
}

func (h *AuctionHandler) BuyNow(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req validator.BuyNowRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "BuyNow", err)
		return
	}
	if req.UserID == "" {
		req.UserID = httputil.UserID(r)
	}
	result, err := h.service.BuyNow(r.Context(), ps.ByName("ref"), &req)
	if err != nil {
		h.writeError(w, "BuyNow", err)
		return
	}
	if err := httputil.WriteCreated(w, result); err != nil {
		h.log.Error("failed to write created response", "handler", "BuyNow", "operation", "WriteCreated", "error", err)
	}
}

func (h *AuctionHandler) End(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	auction, err := h.service.SetAuctionEnded(r.Context(), ps.ByName("ref"))
	if err != nil {
		h.writeError(w, "End", err)
		return
	}
	h.writeSuccess(w, "End", auction)
}

func (h *AuctionHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req validator.CancelRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			h.writeError(w, "Cancel", err)
			return
		}
	}
	auction, err := h.service.CancelAuction(r.Context(), ps.ByName("ref"), req.Reason)
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}
	h.writeSuccess(w, "Cancel", auction)
}

func (h *AuctionHandler) ByProvince(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	limit, err := httputil.ExtractLimit(r, 0)
	if err != nil {
		h.writeError(w, "ByProvince", err)
		return
	}
	status := model.AuctionStatus(r.URL.Query().Get("status"))
	auctions, err := h.service.ListByProvince(r.Context(), ps.ByName("code"), status, limit)
	if err != nil {
		h.writeError(w, "ByProvince", err)
		return
	}
	h.writeSuccess(w, "ByProvince", auctions)
}

func (h *AuctionHandler) ByDistrict(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	limit, err := httputil.ExtractLimit(r, 0)
	if err != nil {
		h.writeError(w, "ByDistrict", err)
		return
	}
	status := model.AuctionStatus(r.URL.Query().Get("status"))
	auctions, err := h.service.ListByDistrict(r.Context(), ps.ByName("code"), status, limit)
	if err != nil {
		h.writeError(w, "ByDistrict", err)
		return
	}
	h.writeSuccess(w, "ByDistrict", auctions)
}

func (h *AuctionHandler) EndingSoon(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.listActive(w, r, "EndingSoon", h.service.EndingSoon)
}

func (h *AuctionHandler) Featured(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.listActive(w, r, "Featured", h.service.Featured)
}

func (h *AuctionHandler) Newest(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.listActive(w, r, "Newest", h.service.Newest)
}

func (h *AuctionHandler) AdminList(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "AdminList", err)
		return
	}
	status := model.AuctionStatus(r.URL.Query().Get("status"))
	auctions, total, err := h.service.AdminList(r.Context(), status, limit, offset)
	if err != nil {
		h.writeError(w, "AdminList", err)
		return
	}
	if err := httputil.WritePaginated(w, auctions, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "AdminList", "operation", "WritePaginated", "error", err)
	}
}

func (h *AuctionHandler) UserBids(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "UserBids", err)
		return
	}
	bids, total, err := h.service.BidsByUser(r.Context(), ps.ByName("userId"), limit, offset)
	if err != nil {
		h.writeError(w, "UserBids", err)
		return
	}
	if err := httputil.WritePaginated(w, bids, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "UserBids", "operation", "WritePaginated", "error", err)
	}
}

type listFunc func(ctx context.Context, limit int) ([]*model.Auction, error)

func (h *AuctionHandler) listActive(w http.ResponseWriter, r *http.Request, handler string, list listFunc) {
	limit, err := httputil.ExtractLimit(r, 0)
	if err != nil {
		h.writeError(w, handler, err)
		return
	}
	auctions, err := list(r.Context(), limit)
	if err != nil {
		h.writeError(w, handler, err)
		return
	}
	h.writeSuccess(w, handler, auctions)
}

func (h *AuctionHandler) writeSuccess(w http.ResponseWriter, handler string, data any) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", handler, "operation", "WriteSuccess", "error", err)
	}
}

func (h *AuctionHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *AuctionHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/auction/:ref", h.Open)
	router.POST("/auction/:ref/bid", h.Bid)
	router.POST("/auction/:ref/buy-now", h.BuyNow)
	router.PUT("/auction/:ref/end", h.End)
	router.PUT("/auction/:ref/cancel", h.Cancel)

	router.GET("/auction/by-uid/:auctionUid", h.GetByUID)
	router.GET("/auction/province/:code", h.ByProvince)
	router.GET("/auction/district/:code", h.ByDistrict)
	router.GET("/auction/ending-soon", h.EndingSoon)
	router.GET("/auction/featured", h.Featured)
	router.GET("/auction/newest", h.Newest)
	router.GET("/auction/admin/list", h.AdminList)
	router.GET("/auction/user/:userId/bids", h.UserBids)
}
