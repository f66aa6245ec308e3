package models

import "time"

const (
	CheckoutStatusSuccessful = "Successful"
	CheckoutStatusPending    = "Pending"
	CheckoutStatusCancelled  = "Cancelled"
	CheckoutStatusFailed     = "Failed"
)

// Statuses reported by CHECK_PAYMENT_STATUS.
const (
	PaymentStatusPaid       = "paid"
	PaymentStatusPending    = "pending"
	PaymentStatusInProgress = "in_progress"
	PaymentStatusCancelled  = "cancelled"
	PaymentStatusFailed     = "failed"
	PaymentStatusDeclined   = "declined"
)

// IsTerminalFailure covers the statuses that end polling as failed.
func IsTerminalFailure(status string) bool {
	switch status {
	case PaymentStatusCancelled, PaymentStatusFailed, PaymentStatusDeclined:
		return true
	}
	return false
}

// IsStillPending covers the statuses recovery may resume.
func IsStillPending(status string) bool {
	return status == PaymentStatusPending || status == PaymentStatusInProgress
}

// PendingPaymentData exists only while the host has accepted a checkout
// that is neither confirmed paid nor failed.
type PendingPaymentData struct {
	OrderNumber    string    `json:"orderNumber"`
	PaymentID      string    `json:"paymentId"`
	BuyerPhone     string    `json:"buyerPhone,omitempty"`
	BuyerFirstName string    `json:"buyerFirstName,omitempty"`
	Amount         float64   `json:"amount"`
	Currency       string    `json:"currency,omitempty"`
	Email          string    `json:"email,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (p PendingPaymentData) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(p.CreatedAt) > ttl
}

type CheckoutResult struct {
	OrderNumber   string  `json:"orderNumber"`
	Status        string  `json:"status"`
	PaymentID     string  `json:"paymentId,omitempty"`
	TotalAmount   float64 `json:"totalAmount,omitempty"`
	Currency      string  `json:"currency,omitempty"`
	CustomerEmail string  `json:"customerEmail,omitempty"`
	PdfLink       string  `json:"pdfLink,omitempty"`
}

type PaymentStatusResult struct {
	Status      string `json:"status"`
	OrderNumber string `json:"orderNumber,omitempty"`
	TicketsPdf  string `json:"ticketsPdf,omitempty"`
}
