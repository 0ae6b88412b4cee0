package handler

import (
	"net/http"
	"strconv"

	"staybid/internal/bookings/service"
	"staybid/internal/bookings/validator"
	apperrors "staybid/pkg/errors"
	httputil "staybid/pkg/http"
	"staybid/pkg/logger"
	"staybid/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

func (h *BookingHandler) Place(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req validator.PlaceRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Place", err)
		return
	}
	if req.GuestID == "" {
		req.GuestID = httputil.UserID(r)
	}

	draft, err := h.service.PlaceDraft(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Place", err)
		return
	}
	if err := httputil.WriteCreated(w, draft); err != nil {
		h.log.Error("failed to write created response", "handler", "Place", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := bookingID(ps)
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}
	booking, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}
	h.writeSuccess(w, "GetByID", booking)
}

func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := bookingID(ps)
	if err != nil {
		h.writeError(w, "Confirm", err)
		return
	}
	var req validator.ConfirmRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Confirm", err)
		return
	}
	booking, err := h.service.ConfirmPayment(r.Context(), id, req.PaymentMethodRef)
	if err != nil {
		h.writeError(w, "Confirm", err)
		return
	}
	h.writeSuccess(w, "Confirm", booking)
}

func (h *BookingHandler) Fail(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := bookingID(ps)
	if err != nil {
		h.writeError(w, "Fail", err)
		return
	}
	var req validator.FailRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			h.writeError(w, "Fail", err)
			return
		}
	}
	booking, err := h.service.FailPayment(r.Context(), id, req.Note)
	if err != nil {
		h.writeError(w, "Fail", err)
		return
	}
	h.writeSuccess(w, "Fail", booking)
}

func (h *BookingHandler) ByGuest(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ByGuest", err)
		return
	}
	bookings, total, err := h.service.ListByGuest(r.Context(), ps.ByName("userId"), limit, offset)
	if err != nil {
		h.writeError(w, "ByGuest", err)
		return
	}
	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ByGuest", "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) AdminList(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "AdminList", err)
		return
	}
	status := model.BookingStatus(r.URL.Query().Get("status"))
	bookings, total, err := h.service.AdminList(r.Context(), status, limit, offset)
	if err != nil {
		h.writeError(w, "AdminList", err)
		return
	}
	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "AdminList", "operation", "WritePaginated", "error", err)
	}
}

func bookingID(ps httprouter.Params) (int64, error) {
	raw := ps.ByName("ref")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.InvalidInput("invalid booking id: " + raw)
	}
	return id, nil
}

func (h *BookingHandler) writeSuccess(w http.ResponseWriter, handler string, data any) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", handler, "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

// Collection serves POST /booking/place next to the per-booking routes.
func (h *BookingHandler) Collection(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if ps.ByName("ref") != "place" {
		h.writeError(w, "Collection", apperrors.NotFound("Route"))
		return
	}
	h.Place(w, r, ps)
}

// Listing serves GET /booking/user/:userId and GET /booking/admin/list.
func (h *BookingHandler) Listing(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	switch ref := ps.ByName("ref"); {
	case ref == "user":
		h.ByGuest(w, r, httprouter.Params{{Key: "userId", Value: ps.ByName("arg")}})
	case ref == "admin" && ps.ByName("arg") == "list":
		h.AdminList(w, r, ps)
	default:
		h.writeError(w, "Listing", apperrors.NotFound("Route"))
	}
}

// RegisterRoutes mounts the booking endpoints. httprouter rejects a static
// segment next to a wildcard, so the static paths are dispatched from the
// wildcard routes.
func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/booking/:ref", h.Collection)
	router.POST("/booking/:ref/confirm", h.Confirm)
	router.POST("/booking/:ref/fail", h.Fail)

	router.GET("/booking/:ref", h.GetByID)
	router.GET("/booking/:ref/:arg", h.Listing)
}
