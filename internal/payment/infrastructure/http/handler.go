package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/charge-ledger/internal/payment/application"
	"github.com/dmehra2102/charge-ledger/internal/payment/domain"
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
		tracer:   otel.Tracer("payment-http"),
		validate: validator.New(),
	}
}

type voucherReq struct {
	OrderCode     string `json:"orderCode"`
	CustomerID    string `json:"customerId"`
	CustomerEmail string `json:"customerEmail" validate:"omitempty,email"`
	CardToken     string `json:"cardToken" validate:"required"`
	Amount        int64  `json:"amount" validate:"gte=0"`
	Installments  *int   `json:"installments"`
	SaveOnSuccess bool   `json:"saveOnSuccess"`
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/voucher", h.buildVoucher)
	return r
}

func (h *Handler) buildVoucher(w http.ResponseWriter, r *http.Request) {
	_, span := h.tracer.Start(r.Context(), "BuildVoucherPayment")
	defer span.End()

	var req voucherReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	out, err := h.service.BuildVoucherPayment(application.VoucherRequest(req))
	if errors.Is(err, domain.ErrInvalidParam) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		h.log.Error("build voucher payment failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
