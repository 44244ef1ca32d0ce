package api

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/digital-storefront/internal/command"
	"github.com/example/digital-storefront/internal/domain/payment"
	"github.com/example/digital-storefront/internal/gateway"
)

// CallbackParser verifies and decodes a gateway push.
type CallbackParser interface {
	ParseCallback(body []byte, signature string) (payment.StatusUpdate, error)
}

type PaymentHandlers struct {
	cmdHandler *command.Handler
	parser     CallbackParser
	logger     *zap.Logger
}

func NewPaymentHandlers(cmdHandler *command.Handler, parser CallbackParser, logger *zap.Logger) *PaymentHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentHandlers{
		cmdHandler: cmdHandler,
		parser:     parser,
		logger:     logger.Named("callback"),
	}
}

// Callback applies a signed status push from the gateway. Updates for finished
// sessions and tampered settlements are acknowledged with 200.
func (h *PaymentHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	update, err := h.parser.ParseCallback(body, r.Header.Get(gateway.SignatureHeader))
	switch {
	case errors.Is(err, gateway.ErrInvalidSignature):
		h.logger.Warn("callback signature rejected", zap.String("remote_addr", r.RemoteAddr))
		respondJSONError(w, "invalid signature", http.StatusUnauthorized)
		return
	case err != nil:
		respondJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	session, err := h.cmdHandler.ApplyPaymentCallback(r.Context(), command.ApplyPaymentCallback{Update: update})
	switch {
	case err == nil:
	case errors.Is(err, payment.ErrSessionTerminal), errors.Is(err, payment.ErrTamper):
		h.logger.Info("callback acknowledged without change",
			zap.String("transaction_id", update.TransactionID),
			zap.Error(err),
		)
	default:
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"status":  session.Status,
	})
}
