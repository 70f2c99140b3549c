// Package entitlement owns the business rules of digital delivery:
// which purchased order items grant file access, how download tokens
// are minted, validated and consumed, and how re-issuance behaves.
// It talks to the order store, the file catalog and the download
// ledger through narrow interfaces so the rules can be tested
// without a database.
package entitlement

import "errors"

// Issuance-side errors.

// ErrOrderItemNotFound is returned when the order item id does not exist.
var ErrOrderItemNotFound = errors.New("order item not found")

// ErrNotDigital is returned when issuance is requested for a
// physical line item.
var ErrNotDigital = errors.New("order item is not digital")

// ErrOrderNotEligible is returned when the parent order has not
// reached a fulfillment state that grants digital access (payment
// not confirmed, or the order was cancelled).
var ErrOrderNotEligible = errors.New("order not eligible for digital delivery")

// ErrNoDigitalContent is returned when the purchased book has zero
// active digital files. It is informational rather than fatal:
// fulfillment continues and an operator adds the missing files, after
// which the repair run picks the item up.
var ErrNoDigitalContent = errors.New("no digital content available for book")

// Redemption-side denials. Handlers must collapse these to generic
// client responses; the specific reason is for server logs only.

// ErrUnknownToken is returned when the token has no ledger row.
var ErrUnknownToken = errors.New("unknown download token")

// ErrExpired is returned when the token's expiry has passed.
// Terminal: expired tokens never become redeemable again.
var ErrExpired = errors.New("download token expired")

// ErrOwnershipMismatch is returned when the requesting user is not
// the ledger row's owner. Callers must present this identically to
// ErrUnknownToken so a valid token cannot be probed with a foreign
// identity.
var ErrOwnershipMismatch = errors.New("download token not owned by requester")

// ErrQuotaExhausted is returned when the item's max_downloads quota
// has been reached.
var ErrQuotaExhausted = errors.New("download quota exhausted")
