// Package payment defines the external payment collaborator. The engine only
// needs two things from it: a stable, unguessable payment reference bound to
// an invoice, and an opportunistic view of an invoice's payment state.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Status is the gateway's view of an invoice.
type Status string

const (
	StatusUnpaid  Status = "UNPAID"
	StatusPartial Status = "PARTIAL"
	StatusPaid    Status = "PAID"
)

// ErrStatusUnavailable is returned by providers that cannot report payment
// state. Callers treat it as "keep what you already know".
var ErrStatusUnavailable = fmt.Errorf("payment status unavailable")

// Provider is the payment gateway abstraction.
type Provider interface {
	// GeneratePaymentReference mints a new payment link token for the
	// invoice. Each call returns a fresh token; re-dispatching an invoice
	// invalidates nothing on our side, the gateway owns link lifecycle.
	GeneratePaymentReference(ctx context.Context, invoiceID string) (string, error)

	// QueryPaymentStatus reports the gateway's current view of the invoice.
	QueryPaymentStatus(ctx context.Context, invoiceID string) (Status, error)
}

// TokenProvider generates payment references locally as HMAC-SHA256 tokens
// keyed with a service pepper. The token binds the invoice ID and a random
// nonce, so references are unguessable and never repeat between dispatches.
// It cannot report payment status.
type TokenProvider struct {
	pepper []byte
}

// NewTokenProvider creates a TokenProvider with the given HMAC pepper.
func NewTokenProvider(pepper []byte) *TokenProvider {
	return &TokenProvider{pepper: pepper}
}

func (p *TokenProvider) GeneratePaymentReference(_ context.Context, invoiceID string) (string, error) {
	mac := hmac.New(sha256.New, p.pepper)
	mac.Write([]byte(invoiceID))
	mac.Write([]byte(":"))
	mac.Write([]byte(uuid.New().String()))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

func (p *TokenProvider) QueryPaymentStatus(_ context.Context, _ string) (Status, error) {
	return "", ErrStatusUnavailable
}
