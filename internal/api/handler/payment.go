package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ayo6706/concert-ticketing/internal/domain"
	"github.com/ayo6706/concert-ticketing/internal/gateway"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	gw gateway.Gateway
}

func NewPaymentHandler(gw gateway.Gateway) *PaymentHandler {
	return &PaymentHandler{gw: gw}
}

type moneyResponse struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func toMoneyResponse(m domain.Money) moneyResponse {
	return moneyResponse{Amount: m.Format(), Currency: m.Currency.String()}
}

func (h *PaymentHandler) Currencies(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string][]domain.Currency{"currencies": domain.SupportedCurrencies()})
}

func (h *PaymentHandler) PreAuthorize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount      decimal.Decimal `json:"amount"`
		Currency    string          `json:"currency"`
		Description string          `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	amount, err := domain.ParseMoney(req.Amount, req.Currency)
	switch {
	case errors.Is(err, domain.ErrUnsupportedCurrency):
		RespondError(w, r, http.StatusBadRequest, "payment/unsupported-currency", err.Error())
		return
	case err != nil:
		RespondError(w, r, http.StatusBadRequest, "payment/invalid-amount", err.Error())
		return
	}

	res, err := h.gw.PreAuthorize(r.Context(), gateway.PreAuthRequest{
		Amount:      amount,
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		respondGatewayError(w, r, err)
		return
	}

	RespondJSON(w, http.StatusCreated, map[string]any{
		"reference":     res.Reference,
		"amount":        toMoneyResponse(res.Amount),
		"authorized_at": res.AuthorizedAt,
	})
}

func (h *PaymentHandler) Capture(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reference string `json:"reference"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Reference) == "" {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "reference is required")
		return
	}

	res, err := h.gw.Capture(r.Context(), gateway.CaptureRequest{Reference: strings.TrimSpace(req.Reference)})
	if err != nil {
		respondGatewayError(w, r, err)
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"reference":   res.Reference,
		"amount":      toMoneyResponse(res.Amount),
		"captured_at": res.CapturedAt,
	})
}

func respondGatewayError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrUnsupportedCurrency):
		RespondError(w, r, http.StatusBadRequest, "payment/unsupported-currency", err.Error())
	case errors.Is(err, gateway.ErrInvalidAmount):
		RespondError(w, r, http.StatusBadRequest, "payment/invalid-amount", err.Error())
	case errors.Is(err, gateway.ErrUnknownReference):
		RespondError(w, r, http.StatusNotFound, "payment/unknown-reference", "authorization not found")
	case errors.Is(err, gateway.ErrAlreadyCaptured):
		RespondError(w, r, http.StatusConflict, "payment/already-captured", "authorization already captured")
	case errors.Is(err, gateway.ErrGatewayUnavailable):
		RespondError(w, r, http.StatusBadGateway, "payment/gateway-unavailable", "payment gateway unavailable")
	default:
		zap.L().Error("gateway call failed", zap.Error(err))
		RespondError(w, r, http.StatusBadGateway, "payment/gateway-error", "payment gateway error")
	}
}
