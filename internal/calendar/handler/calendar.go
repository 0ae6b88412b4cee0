package handler

import (
	"context"
	"net/http"
	"time"

	"staybid/internal/calendar/service"
	"staybid/internal/calendar/validator"
	"staybid/internal/sweeper"
	"staybid/internal/units"
	apperrors "staybid/pkg/errors"
	httputil "staybid/pkg/http"
	"staybid/pkg/logger"
	"staybid/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type Sweeper interface {
	RunOnce(ctx context.Context, now time.Time) (*sweeper.Result, error)
}

type CalendarHandler struct {
	ledger    service.Ledger
	catalog   units.Catalog
	sweeper   Sweeper
	validator *validator.CalendarValidator
	log       *logger.Logger
	now       func() time.Time
}

func NewCalendarHandler(ledger service.Ledger, catalog units.Catalog, sweeper Sweeper, log *logger.Logger) *CalendarHandler {
	return &CalendarHandler{
		ledger:    ledger,
		catalog:   catalog,
		sweeper:   sweeper,
		validator: validator.NewCalendarValidator(),
		log:       log,
		now:       time.Now,
	}
}

// Check answers whether a stay can be booked. Lapsed holds are swept first so
// the answer reflects them.
func (h *CalendarHandler) Check(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	unit, start, end, err := h.rangeQuery(r, "checkin", "checkout")
	if err != nil {
		h.writeError(w, "Check", err)
		return
	}
	if _, err := h.sweeper.RunOnce(r.Context(), h.now()); err != nil {
		h.log.Warn("Sweep before availability check failed", "handler", "Check", "error", err)
	}

	availability, err := h.ledger.IsRangeAvailable(r.Context(), unit.ID, start, end)
	if err != nil {
		h.writeError(w, "Check", err)
		return
	}
	h.log.Debug("Availability checked", "unit_uid", unit.UID, "user_id", r.URL.Query().Get("userId"), "available", availability.Available)
	h.writeSuccess(w, "Check", availability)
}

func (h *CalendarHandler) Range(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	unit, start, end, err := h.rangeQuery(r, "start", "end")
	if err != nil {
		h.writeError(w, "Range", err)
		return
	}
	days, err := h.ledger.GetRange(r.Context(), unit.ID, start, end)
	if err != nil {
		h.writeError(w, "Range", err)
		return
	}
	h.writeSuccess(w, "Range", days)
}

func (h *CalendarHandler) Block(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req, start, end, err := h.rangeBody(r)
	if err != nil {
		h.writeError(w, "Block", err)
		return
	}
	if err := h.ledger.Block(r.Context(), req.UnitUID, start, end, model.LockReason(req.Reason)); err != nil {
		h.writeError(w, "Block", err)
		return
	}
	httputil.WriteNoContent(w)
}

type unblockResponse struct {
	Released int `json:"released"`
}

func (h *CalendarHandler) Unblock(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req, start, end, err := h.rangeBody(r)
	if err != nil {
		h.writeError(w, "Unblock", err)
		return
	}
	released, err := h.ledger.Unblock(r.Context(), req.UnitUID, start, end)
	if err != nil {
		h.writeError(w, "Unblock", err)
		return
	}
	h.writeSuccess(w, "Unblock", unblockResponse{Released: released})
}

func (h *CalendarHandler) ReleaseExpiredHolds(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	result, err := h.sweeper.RunOnce(r.Context(), h.now())
	if err != nil {
		h.writeError(w, "ReleaseExpiredHolds", err)
		return
	}
	h.writeSuccess(w, "ReleaseExpiredHolds", result)
}

func (h *CalendarHandler) rangeQuery(r *http.Request, startKey, endKey string) (*model.Unit, time.Time, time.Time, error) {
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		return nil, time.Time{}, time.Time{}, apperrors.InvalidInput("uid is required")
	}
	start, err := httputil.QueryDay(r, startKey)
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}
	end, err := httputil.QueryDay(r, endKey)
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}
	unit, err := h.catalog.FindByUID(r.Context(), uid)
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}
	return unit, start, end, nil
}

func (h *CalendarHandler) rangeBody(r *http.Request) (*validator.RangeRequest, time.Time, time.Time, error) {
	var req validator.RangeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		return nil, time.Time{}, time.Time{}, err
	}
	if err := h.validator.Validate(&req); err != nil {
		return nil, time.Time{}, time.Time{}, apperrors.Validation("Invalid calendar request", map[string]any{"errors": err})
	}
	start, _ := model.ParseDay(req.Start)
	end, _ := model.ParseDay(req.End)
	return &req, start, end, nil
}

func (h *CalendarHandler) writeSuccess(w http.ResponseWriter, handler string, data any) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", handler, "operation", "WriteSuccess", "error", err)
	}
}

func (h *CalendarHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *CalendarHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/calendar/check", h.Check)
	router.GET("/calendar/range", h.Range)
	router.POST("/calendar/block", h.Block)
	router.POST("/calendar/unblock", h.Unblock)
	router.POST("/calendar/release-expired-holds", h.ReleaseExpiredHolds)
}
