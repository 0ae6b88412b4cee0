package handler

import (
	"net/http"

	"staybid/internal/parameters/service"
	"staybid/internal/parameters/validator"
	httputil "staybid/pkg/http"
	"staybid/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type ParameterHandler struct {
	service service.ParameterService
	log     *logger.Logger
}

func NewParameterHandler(service service.ParameterService, log *logger.Logger) *ParameterHandler {
	return &ParameterHandler{
		service: service,
		log:     log,
	}
}

func (h *ParameterHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	entries, err := h.service.ListParameters(r.Context())
	if err != nil {
		h.writeError(w, "List", err)
		return
	}
	if err := httputil.WriteSuccess(w, entries); err != nil {
		h.log.Error("failed to write success response", "handler", "List", "operation", "WriteSuccess", "error", err)
	}
}

type paymentDeadlineResponse struct {
	Minutes int `json:"minutes"`
}

func (h *ParameterHandler) PaymentDeadline(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	deadline, err := h.service.GetPaymentDeadline(r.Context())
	if err != nil {
		h.writeError(w, "PaymentDeadline", err)
		return
	}
	if err := httputil.WriteSuccess(w, paymentDeadlineResponse{Minutes: int(deadline.Minutes())}); err != nil {
		h.log.Error("failed to write success response", "handler", "PaymentDeadline", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ParameterHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req validator.UpdateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Update", err)
		return
	}

	entry, err := h.service.UpdateParameter(r.Context(), ps.ByName("name"), req.Value)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}
	if err := httputil.WriteSuccess(w, entry); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ParameterHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *ParameterHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/parameters", h.List)
	router.GET("/parameters/payment-deadline", h.PaymentDeadline)
	router.PUT("/parameters/:name", h.Update)
}
