package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/digital-storefront/internal/auth"
	"github.com/example/digital-storefront/internal/command"
	"github.com/example/digital-storefront/internal/domain/cart"
	"github.com/example/digital-storefront/internal/domain/catalog"
	"github.com/example/digital-storefront/internal/domain/order"
	"github.com/example/digital-storefront/internal/domain/payment"
	"github.com/example/digital-storefront/internal/support"
	"github.com/example/digital-storefront/internal/workspace"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type errorMapping struct {
	err    error
	status int
	code   string
}

// Checked in order; the first match wins.
var errorMappings = []errorMapping{
	{payment.ErrTamper, http.StatusConflict, "payment_tampered"},
	{payment.ErrEmptySelection, http.StatusUnprocessableEntity, "empty_selection"},
	{payment.ErrInvalidMethod, http.StatusBadRequest, "invalid_method"},
	{payment.ErrSessionInProgress, http.StatusConflict, "session_in_progress"},
	{payment.ErrSessionTerminal, http.StatusConflict, "session_finished"},
	{payment.ErrGatewayUnavailable, http.StatusServiceUnavailable, "gateway_unavailable"},
	{payment.ErrGatewayRejected, http.StatusBadGateway, "gateway_rejected"},
	{payment.ErrNoActiveSession, http.StatusNotFound, "no_active_session"},
	{command.ErrNoCheckout, http.StatusNotFound, "no_active_session"},
	{payment.ErrUnknownTransaction, http.StatusNotFound, "unknown_transaction"},
	{cart.ErrIndexOutOfRange, http.StatusNotFound, "index_out_of_range"},
	{cart.ErrInvalidProduct, http.StatusBadRequest, "invalid_product"},
	{catalog.ErrProductNotFound, http.StatusNotFound, "product_not_found"},
	{catalog.ErrTierNotFound, http.StatusNotFound, "tier_not_found"},
	{catalog.ErrInvalidID, http.StatusBadRequest, "invalid_product"},
	{catalog.ErrInvalidTitle, http.StatusBadRequest, "invalid_product"},
	{catalog.ErrNoTiers, http.StatusBadRequest, "invalid_product"},
	{catalog.ErrInvalidPrice, http.StatusBadRequest, "invalid_product"},
	{catalog.ErrDuplicateTier, http.StatusBadRequest, "invalid_product"},
	{order.ErrOrderNotFound, http.StatusNotFound, "order_not_found"},
	{support.ErrInvalidTicket, http.StatusBadRequest, "invalid_ticket"},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{workspace.ErrClosed, http.StatusServiceUnavailable, "shutting_down"},
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondJSONError writes a JSON error response
func respondJSONError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// respondDomainError maps a domain error to its HTTP status. Unmapped errors are
// logged and reported as 500 without detail.
func respondDomainError(w http.ResponseWriter, logger *zap.Logger, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			respondJSON(w, m.status, ErrorResponse{Error: err.Error(), Code: m.code})
			return
		}
	}
	logger.Error("request failed", zap.Error(err))
	respondJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: "internal_error"})
}
