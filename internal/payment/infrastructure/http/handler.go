package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/payment-console/internal/payment/application"
	"github.com/dmehra2102/payment-console/internal/payment/domain"
	"github.com/dmehra2102/payment-console/pkg/idempotency"
)

const qrSize = 256

type Handler struct {
	log     *slog.Logger
	service *application.Service
	link    func(publicID string) string
	idem    *idempotency.Store
	tracer  trace.Tracer
}

// NewHandler wires the routes. idem may be nil, which disables
// Idempotency-Key handling.
func NewHandler(log *slog.Logger, service *application.Service, link func(string) string, idem *idempotency.Store) *Handler {
	return &Handler{
		log:     log,
		service: service,
		link:    link,
		idem:    idem,
		tracer:  otel.Tracer("payment-http"),
	}
}

type createPaymentReq struct {
	Amount          json.Number `json:"amount"`
	Currency        string      `json:"currency"`
	MerchantOrderID string      `json:"merchantOrderId"`
}

type paymentView struct {
	ID              string          `json:"id"`
	PublicID        string          `json:"publicId"`
	Amount          int64           `json:"amount"`
	DisplayAmount   string          `json:"displayAmount"`
	Currency        domain.Currency `json:"currency"`
	Status          domain.Status   `json:"status"`
	MerchantOrderID string          `json:"merchantOrderId"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	PaymentLink     string          `json:"paymentLink"`
}

// publicView is what the holder of a pay link sees. It never includes the system id.
type publicView struct {
	PublicID        string          `json:"publicId"`
	Amount          int64           `json:"amount"`
	DisplayAmount   string          `json:"displayAmount"`
	Currency        domain.Currency `json:"currency"`
	Status          domain.Status   `json:"status"`
	MerchantOrderID string          `json:"merchantOrderId"`
	CreatedAt       time.Time       `json:"createdAt"`
}

func (h *Handler) view(p domain.Payment) paymentView {
	return paymentView{
		ID:              p.ID,
		PublicID:        p.PublicID,
		Amount:          p.Amount,
		DisplayAmount:   p.DisplayAmount(),
		Currency:        p.Currency,
		Status:          p.Status,
		MerchantOrderID: p.MerchantOrderID,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
		PaymentLink:     h.link(p.PublicID),
	}
}

func publicViewOf(p domain.Payment) publicView {
	return publicView{
		PublicID:        p.PublicID,
		Amount:          p.Amount,
		DisplayAmount:   p.DisplayAmount(),
		Currency:        p.Currency,
		Status:          p.Status,
		MerchantOrderID: p.MerchantOrderID,
		CreatedAt:       p.CreatedAt,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", h.health)

	r.Route("/payments", func(r chi.Router) {
		r.With(idempotency.Middleware(h.log, h.idem, "create-payment")).Post("/", h.createPayment)
		r.Get("/", h.listPayments)
		r.Get("/{id}", h.getPayment)
		r.Get("/{id}/qr", h.paymentQR)
	})

	r.Route("/pay/{publicId}", func(r chi.Router) {
		r.Get("/", h.getPublicPayment)
		r.Post("/paid", h.markPaid)
		r.Post("/cancel", h.markCanceled)
	})
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreatePayment")
	defer span.End()

	var req createPaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}
	amount, err := req.Amount.Int64()
	if err != nil {
		h.fail(w, span, &domain.ValidationError{Field: "amount", Reason: "Invalid amount"})
		return
	}

	p, err := h.service.CreatePayment(ctx, application.CreatePaymentInput{
		Amount:          amount,
		Currency:        domain.Currency(req.Currency),
		MerchantOrderID: req.MerchantOrderID,
	})
	if err != nil {
		h.fail(w, span, err)
		return
	}
	span.SetAttributes(attribute.String("payment.id", p.ID))
	w.Header().Set("Location", "/payments/"+p.ID)
	writeJSON(w, http.StatusCreated, h.view(p))
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListPayments")
	defer span.End()

	q := r.URL.Query()
	payments, err := h.service.List(ctx, application.ListQuery{Search: q.Get("search"), Status: q.Get("status")})
	if err != nil {
		h.fail(w, span, err)
		return
	}
	views := make([]paymentView, 0, len(payments))
	for _, p := range payments {
		views = append(views, h.view(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": views, "count": len(views)})
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetPayment")
	defer span.End()

	p, err := h.service.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, span, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(p))
}

func (h *Handler) paymentQR(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PaymentQR")
	defer span.End()

	p, err := h.service.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, span, err)
		return
	}
	png, err := qrcode.Encode(h.link(p.PublicID), qrcode.Medium, qrSize)
	if err != nil {
		h.fail(w, span, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *Handler) getPublicPayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetPublicPayment")
	defer span.End()

	p, err := h.service.GetByPublicID(ctx, chi.URLParam(r, "publicId"))
	if err != nil {
		h.fail(w, span, err)
		return
	}
	writeJSON(w, http.StatusOK, publicViewOf(p))
}

func (h *Handler) markPaid(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "MarkPaid")
	defer span.End()

	p, err := h.service.MarkPaid(ctx, chi.URLParam(r, "publicId"))
	if err != nil {
		h.fail(w, span, err)
		return
	}
	writeJSON(w, http.StatusOK, publicViewOf(p))
}

func (h *Handler) markCanceled(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "MarkCanceled")
	defer span.End()

	p, err := h.service.MarkCanceled(ctx, chi.URLParam(r, "publicId"))
	if err != nil {
		h.fail(w, span, err)
		return
	}
	writeJSON(w, http.StatusOK, publicViewOf(p))
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func (h *Handler) fail(w http.ResponseWriter, span trace.Span, err error) {
	var (
		validation *domain.ValidationError
		notFound   *domain.NotFoundError
		state      *domain.InvalidStateError
		conflict   *domain.ConflictError
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: validation.Reason, Field: validation.Field})
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: notFound.Error()})
	case errors.As(err, &state):
		writeJSON(w, http.StatusConflict, errorBody{Error: "Payment is not in pending status"})
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: "payment was modified concurrently, reload and retry"})
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.log.Error("request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
