package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/tonyboom3d/exact-view-framework/internal/service"
	"github.com/tonyboom3d/exact-view-framework/internal/wizard"
	pkgErrors "github.com/tonyboom3d/exact-view-framework/pkg/errors"
	"github.com/tonyboom3d/exact-view-framework/pkg/logger"
	"github.com/tonyboom3d/exact-view-framework/pkg/response"
)

const serviceName = "checkout-service"

type OpenSessionRequest struct {
	DeviceID string `json:"device_id" validate:"omitempty,max=128"`
}

type HTTPHandler struct {
	svc       service.CheckoutService
	tokens    *service.TokenIssuer
	ready     func() bool
	l         logger.Logger
	validator *validator.Validate
}

// NewHTTPHandler builds the handler. ready reports whether the ticket
// catalog has been loaded and may be nil.
func NewHTTPHandler(svc service.CheckoutService, tokens *service.TokenIssuer, ready func() bool, l logger.Logger) *HTTPHandler {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	if ready == nil {
		ready = func() bool { return true }
	}
	return &HTTPHandler{svc: svc, tokens: tokens, ready: ready, l: l, validator: v}
}

// HealthCheck handles health check requests
func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ready := h.ready()
	status := "healthy"
	if !ready {
		status = "starting"
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"status":       status,
		"service":      serviceName,
		"catalogReady": ready,
	})
}

func (h *HTTPHandler) ListTickets(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]any{"tickets": h.svc.Tickets(r.Context())})
}

func (h *HTTPHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(w, errInvalidBody)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.ValidationError(w, err)
		return
	}

	out, err := h.svc.OpenSession(r.Context(), req.DeviceID)
	if err != nil {
		h.fail(w, r, "OpenSession", err)
		return
	}
	response.JSON(w, http.StatusCreated, out)
}

func (h *HTTPHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	h.respondView(w, r, "GetSession", http.StatusOK, h.svc.GetSession)
}

func (h *HTTPHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.CloseSession(r.Context(), sessionID(r)); err != nil {
		h.fail(w, r, "CloseSession", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) SelectTicket(w http.ResponseWriter, r *http.Request) {
	var in service.SelectTicketInput
	if !h.decode(w, r, &in) {
		return
	}
	h.respondView(w, r, "SelectTicket", http.StatusOK, func(ctx context.Context, id string) (*service.SessionView, error) {
		return h.svc.SelectTicket(ctx, id, in)
	})
}

func (h *HTTPHandler) UpdateDetails(w http.ResponseWriter, r *http.Request) {
	var in wizard.Details
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, errInvalidBody)
		return
	}
	h.respondView(w, r, "UpdateDetails", http.StatusOK, func(ctx context.Context, id string) (*service.SessionView, error) {
		return h.svc.UpdateDetails(ctx, id, in)
	})
}

func (h *HTTPHandler) Next(w http.ResponseWriter, r *http.Request) {
	h.respondView(w, r, "Next", http.StatusOK, h.svc.Next)
}

func (h *HTTPHandler) Back(w http.ResponseWriter, r *http.Request) {
	h.respondView(w, r, "Back", http.StatusOK, h.svc.Back)
}

func (h *HTTPHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.respondView(w, r, "Reset", http.StatusOK, h.svc.Reset)
}

// SubmitPayment answers 202; the client polls GET /sessions/{id} for the
// outcome.
func (h *HTTPHandler) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	h.respondView(w, r, "SubmitPayment", http.StatusAccepted, h.svc.SubmitPayment)
}

func (h *HTTPHandler) CancelPending(w http.ResponseWriter, r *http.Request) {
	h.respondView(w, r, "CancelPending", http.StatusOK, h.svc.CancelPending)
}

func (h *HTTPHandler) ResumePending(w http.ResponseWriter, r *http.Request) {
	h.respondView(w, r, "ResumePending", http.StatusOK, h.svc.ResumePending)
}

func (h *HTTPHandler) DiscardPending(w http.ResponseWriter, r *http.Request) {
	h.respondView(w, r, "DiscardPending", http.StatusOK, h.svc.DiscardPending)
}

// Helper functions

func sessionID(r *http.Request) string {
	return chi.URLParam(r, "sessionId")
}

func (h *HTTPHandler) respondView(
	w http.ResponseWriter,
	r *http.Request,
	op string,
	statusCode int,
	call func(ctx context.Context, sessionID string) (*service.SessionView, error),
) {
	v, err := call(r.Context(), sessionID(r))
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	response.JSON(w, statusCode, v)
}

// decode reads a JSON body into dst and validates it, writing the error
// response itself when either step fails.
func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.Error(w, errInvalidBody)
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		response.ValidationError(w, err)
		return false
	}
	return true
}

func (h *HTTPHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	mapped := mapError(err)
	var httpErr *pkgErrors.HTTPError
	if errors.As(mapped, &httpErr) {
		h.l.Debugf(r.Context(), "http.HTTPHandler.%s: %v", op, err)
	} else {
		h.l.Errorf(r.Context(), "http.HTTPHandler.%s: %v", op, err)
	}
	response.Error(w, mapped)
}
