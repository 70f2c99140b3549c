// Package queue defines message payloads exchanged over the message broker
// and the background consumer that turns payment confirmations into
// download issuance.
package queue

// OrderPaidEvent is published by the storefront's checkout when payment
// for an order is confirmed. Consuming it is what makes digital delivery
// happen at fulfillment-processing time instead of waiting for the
// customer's first download attempt.
type OrderPaidEvent struct {
    EventID string `json:"event_id"`
    OrderID uint64 `json:"order_id"`
    UserID  uint64 `json:"user_id"`
    PaidAt  string `json:"paid_at"`
}

// DownloadsIssuedEvent is published after tokens were minted for one
// order item. The notification service consumes it to email the
// customer their download links. Deliberately token-free: the email
// sender fetches the actual links over an authenticated channel, so a
// compromised broker yields nothing redeemable.
type DownloadsIssuedEvent struct {
    EventID     string `json:"event_id"`
    OrderID     uint64 `json:"order_id"`
    OrderItemID uint64 `json:"order_item_id"`
    UserID      uint64 `json:"user_id"`
    FileCount   int    `json:"file_count"`
    ExpiresAt   string `json:"expires_at"`
    IssuedAt    string `json:"issued_at"`
}
