package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/charge-ledger/internal/charge/application"
	"github.com/dmehra2102/charge-ledger/internal/charge/domain"
	"github.com/dmehra2102/charge-ledger/pkg/tracing"
)

type Handler struct {
	log      *slog.Logger
	service  *application.Service
	tracer   trace.Tracer
	validate *validator.Validate
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		tracer:   otel.Tracer("charge-http"),
		validate: validator.New(),
	}
}

type openChargeReq struct {
	OrderID   string `json:"orderId" validate:"required"`
	GatewayID string `json:"mundipaggId" validate:"required"`
	Code      string `json:"code"`
	Amount    *int64 `json:"amount" validate:"required"`
}

// Amounts are not range-checked here; the ledger owns that policy.
type amountReq struct {
	Amount  *int64            `json:"amount" validate:"required"`
	Headers map[string]string `json:"headers"`
}

type transactionReq struct {
	GatewayID   string            `json:"gatewayId" validate:"required"`
	Type        string            `json:"type" validate:"required,oneof=authorization capture auth_and_capture void refund"`
	Status      string            `json:"status"`
	Amount      int64             `json:"amount"`
	CreatedAt   time.Time         `json:"createdAt" validate:"required"`
	OverwriteID bool              `json:"overwriteId"`
	Headers     map[string]string `json:"headers"`
}

type transactionResp struct {
	ID        int64     `json:"id"`
	GatewayID string    `json:"gatewayId"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/charges", h.openCharge)
	r.Route("/charges/{id}", func(r chi.Router) {
		r.Get("/", h.getCharge)
		r.Post("/pay", h.pay)
		r.Post("/cancel", h.cancel)
		r.Get("/transactions", h.listTransactions)
		r.Post("/transactions", h.recordTransaction)
		r.Get("/transactions/last", h.lastTransaction)
	})

	return r
}

func (h *Handler) openCharge(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "OpenCharge")
	defer span.End()

	var req openChargeReq
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.service.Open(ctx, req.OrderID, req.GatewayID, req.Code, *req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) getCharge(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetCharge")
	defer span.End()

	id, ok := chargeID(w, r)
	if !ok {
		return
	}
	c, err := h.service.Get(ctx, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PayCharge")
	defer span.End()

	id, ok := chargeID(w, r)
	if !ok {
		return
	}
	var req amountReq
	if !h.decode(w, r, &req) {
		return
	}
	span.SetAttributes(attribute.Int64("charge.id", id), attribute.Int64("charge.amount", *req.Amount))

	c, err := h.service.Pay(ctx, id, *req.Amount, req.Headers, traceparent(ctx, r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CancelCharge")
	defer span.End()

	id, ok := chargeID(w, r)
	if !ok {
		return
	}
	var req amountReq
	if !h.decode(w, r, &req) {
		return
	}
	span.SetAttributes(attribute.Int64("charge.id", id), attribute.Int64("charge.amount", *req.Amount))

	c, err := h.service.Cancel(ctx, id, *req.Amount, req.Headers, traceparent(ctx, r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := chargeID(w, r)
	if !ok {
		return
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	txs := c.Transactions()
	out := make([]transactionResp, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionResp(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) lastTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := chargeID(w, r)
	if !ok {
		return
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	last := c.LastTransaction()
	if last == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResp(last))
}

func (h *Handler) recordTransaction(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "RecordTransaction")
	defer span.End()

	id, ok := chargeID(w, r)
	if !ok {
		return
	}
	var req transactionReq
	if !h.decode(w, r, &req) {
		return
	}
	t := domain.NewTransaction(req.GatewayID, domain.TransactionType(req.Type), req.Amount, req.CreatedAt)
	t.Status = req.Status

	c, err := h.service.RecordTransaction(ctx, id, t, req.OverwriteID, req.Headers, traceparent(ctx, r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidParam):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrInvalidOperation):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, application.ErrChargeNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		h.log.Error("charge request failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func chargeID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid charge id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func traceparent(ctx context.Context, r *http.Request) string {
	if tp := r.Header.Get(tracing.TraceparentHeader); tp != "" {
		return tp
	}
	return tracing.Traceparent(ctx)
}

func toTransactionResp(t *domain.Transaction) transactionResp {
	return transactionResp{
		ID:        t.ID(),
		GatewayID: t.GatewayID,
		Type:      string(t.Type),
		Status:    t.Status,
		Amount:    t.AmountCents,
		CreatedAt: t.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
