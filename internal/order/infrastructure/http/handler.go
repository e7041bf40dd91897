package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/dmehra2102/textbook-orders/internal/order/application"
	"github.com/dmehra2102/textbook-orders/internal/order/domain"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
	version string
	now     func() time.Time
	trigger *rate.Limiter
}

type Option func(*Handler)

func WithVersion(v string) Option { return func(h *Handler) { h.version = v } }

// WithClock sets the time handed to the sweeper and the reminder dispatcher.
func WithClock(now func() time.Time) Option { return func(h *Handler) { h.now = now } }

// WithTriggerLimit caps how often the sweep and reminder endpoints may run.
func WithTriggerLimit(every time.Duration, burst int) Option {
	return func(h *Handler) { h.trigger = rate.NewLimiter(rate.Every(every), burst) }
}

func NewHandler(log *slog.Logger, service *application.Service, opts ...Option) *Handler {
	h := &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("order-http"),
		version: "dev",
		now:     func() time.Time { return time.Now().UTC() },
		trigger: rate.NewLimiter(rate.Inf, 0),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type commitReq struct {
	OrderID  string `json:"orderId"`
	SellerID string `json:"sellerId"`
}

type triggerReq struct {
	Action string `json:"action"`
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type commitResp struct {
	Success bool                     `json:"success"`
	Message string                   `json:"message"`
	Order   application.CommitResult `json:"order"`
}

type healthResp struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

type sweepResp struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	application.SweepResult
}

type remindResp struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	application.ReminderResult
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Post("/commit-to-sale", h.commitToSale)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/healthz", h.healthz)

	r.Group(func(r chi.Router) {
		r.Use(limit(h.trigger))
		r.Get("/auto-expire-commits", h.autoExpireCommits)
		r.Post("/auto-expire-commits", h.autoExpireCommits)
		r.Get("/process-order-reminders", h.processOrderReminders)
		r.Post("/process-order-reminders", h.processOrderReminders)
	})

	return r
}

func (h *Handler) commitToSale(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CommitToSale")
	defer span.End()

	body, err := readBody(w, r)
	if err != nil {
		h.fail(w, r, span, err)
		return
	}
	if err := validate(commitSchema, body); err != nil {
		h.fail(w, r, span, err)
		return
	}
	var req commitReq
	if err := json.Unmarshal(body, &req); err != nil {
		h.fail(w, r, span, &schemaError{problems: []string{err.Error()}})
		return
	}
	span.SetAttributes(attribute.String("order.id", req.OrderID))

	res, err := h.service.CommitToSale(ctx, req.OrderID, req.SellerID)
	if err != nil {
		h.fail(w, r, span, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, commitResp{
		Success: true,
		Message: "Order committed successfully",
		Order:   res,
	})
}

func (h *Handler) autoExpireCommits(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "AutoExpireCommits")
	defer span.End()

	req, err := readTrigger(w, r)
	if err != nil {
		h.fail(w, r, span, err)
		return
	}
	if req.Action == "health" {
		h.health(w, r, "auto-expire-commits")
		return
	}

	res, err := h.service.SweepExpiredCommits(ctx, h.now())
	if err != nil {
		h.fail(w, r, span, err)
		return
	}
	span.SetAttributes(attribute.Int("orders.expired", res.ExpiredCount))

	render.Status(r, http.StatusOK)
	render.JSON(w, r, sweepResp{
		Success:     true,
		Message:     fmt.Sprintf("Processed %d expired orders", res.ExpiredCount),
		SweepResult: res,
	})
}

func (h *Handler) processOrderReminders(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ProcessOrderReminders")
	defer span.End()

	req, err := readTrigger(w, r)
	if err != nil {
		h.fail(w, r, span, err)
		return
	}
	if req.Action == "health" {
		h.health(w, r, "process-order-reminders")
		return
	}

	res, err := h.service.DispatchReminders(ctx, h.now())
	if err != nil {
		h.fail(w, r, span, err)
		return
	}
	span.SetAttributes(attribute.Int("reminders.sent", res.TotalReminders))

	render.Status(r, http.StatusOK)
	render.JSON(w, r, remindResp{
		Success:        true,
		Message:        fmt.Sprintf("Sent %d reminders", res.TotalReminders),
		ReminderResult: res,
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	o, err := h.service.GetOrder(ctx, chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrOrderNotFound) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, errorBody{Error: err.Error()})
		return
	}
	if err != nil {
		h.fail(w, r, span, err)
		return
	}
	render.JSON(w, r, o)
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok", "version": h.version})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request, fn string) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, healthResp{
		Success:   true,
		Message:   fn + " is healthy",
		Timestamp: h.now(),
		Version:   h.version,
	})
}

// fail maps an error onto the response contract: 4xx for outcomes where nothing
// happened, 500 for everything else.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, span trace.Span, err error) {
	var (
		stateErr  *domain.InvalidStateError
		schemaErr *schemaError
		status    int
		body      errorBody
	)
	switch {
	case errors.As(err, &schemaErr), errors.Is(err, domain.ErrValidation):
		status, body = http.StatusBadRequest, errorBody{Error: err.Error()}
	case errors.Is(err, domain.ErrNotFoundOrUnauthorized):
		status, body = http.StatusNotFound, errorBody{Error: err.Error()}
	case errors.As(err, &stateErr):
		status, body = http.StatusConflict, errorBody{Error: err.Error()}
	default:
		status, body = http.StatusInternalServerError, errorBody{Error: "Function crashed", Details: err.Error()}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.log.Error("request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "err", err)
	}
	render.Status(r, status)
	render.JSON(w, r, body)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, &schemaError{problems: []string{err.Error()}}
	}
	return body, nil
}

// readTrigger accepts an empty body or a JSON object with an optional action.
func readTrigger(w http.ResponseWriter, r *http.Request) (triggerReq, error) {
	var req triggerReq
	body, err := readBody(w, r)
	if err != nil {
		return req, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return req, nil
	}
	if err := validate(triggerSchema, body); err != nil {
		return req, err
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, &schemaError{problems: []string{err.Error()}}
	}
	return req, nil
}
