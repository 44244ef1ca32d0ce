package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/example/digital-storefront/internal/domain/payment"
)

// SignatureHeader carries hex(HMAC-SHA256(body, privateKey)) on gateway callbacks.
const SignatureHeader = "X-Callback-Signature"

var (
	ErrInvalidSignature = errors.New("gateway: callback signature mismatch")
	ErrInvalidCallback  = errors.New("gateway: malformed callback")
)

// ParseCallback verifies and decodes a status push from the gateway.
func (c *Client) ParseCallback(body []byte, signature string) (payment.StatusUpdate, error) {
	if !c.validSignature(body, signature) {
		return payment.StatusUpdate{}, ErrInvalidSignature
	}

	var data transactionData
	if err := json.Unmarshal(body, &data); err != nil {
		return payment.StatusUpdate{}, fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}
	if data.Reference == "" {
		return payment.StatusUpdate{}, fmt.Errorf("%w: missing reference", ErrInvalidCallback)
	}
	return data.toUpdate(""), nil
}

// CallbackSignature returns the signature the gateway sends for body.
func (c *Client) CallbackSignature(body []byte) string {
	mac := hmac.New(sha256.New, c.privateKey)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) validSignature(body []byte, signature string) bool {
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(got) == 0 {
		return false
	}
	want, _ := hex.DecodeString(c.CallbackSignature(body))
	return hmac.Equal(got, want)
}
