package bridge

import (
	"bytes"
	"encoding/json"
)

// CatalogEntry is one tier as the host reports it.
type CatalogEntry struct {
	Key         string   `json:"key"`
	ID          string   `json:"id,omitempty"`
	SoldPercent *float64 `json:"soldPercent,omitempty"`
	IsSoldOut   *bool    `json:"isSoldOut,omitempty"`
	Price       *float64 `json:"price,omitempty"`
}

// InitEventData accepts both the bare array form and the
// {"eventId": ..., "tickets": [...]} object form.
type InitEventData struct {
	EventID string         `json:"eventId,omitempty"`
	Tickets []CatalogEntry `json:"tickets"`
}

func (d *InitEventData) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &d.Tickets)
	}
	type plain InitEventData
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*d = InitEventData(p)
	return nil
}

type SelectedTicket struct {
	TicketID string `json:"ticketId"`
	Quantity int    `json:"quantity"`
}

type Person struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	IDNumber  string `json:"idNumber,omitempty"`
}

// CheckoutRequest is the START_CHECKOUT body.
type CheckoutRequest struct {
	SelectedTickets  []SelectedTicket `json:"selectedTickets"`
	MainBuyerDetails Person           `json:"mainBuyerDetails"`
	AllGuestNames    []string         `json:"allGuestNames"`
	Guests           []Person         `json:"guests"`
	Payer            *Person          `json:"payer,omitempty"`
	CompanyName      string           `json:"companyName,omitempty"`
	TotalAmount      float64          `json:"totalAmount"`
}

// CheckoutResponse is the body of the host's answer to START_CHECKOUT.
type CheckoutResponse struct {
	OrderNumber    string  `json:"orderNumber"`
	Status         string  `json:"status"`
	PaymentID      string  `json:"paymentId,omitempty"`
	TotalAmount    float64 `json:"totalAmount,omitempty"`
	Currency       string  `json:"currency,omitempty"`
	CustomerEmail  string  `json:"customerEmail,omitempty"`
	PdfLink        string  `json:"pdfLink,omitempty"`
	BuyerPhone     string  `json:"buyerPhone,omitempty"`
	BuyerFirstName string  `json:"buyerFirstName,omitempty"`
}

type PaymentStatusRequest struct {
	PaymentID string `json:"paymentId"`
}

type PaymentStatusResponse struct {
	Status      string `json:"status"`
	OrderNumber string `json:"orderNumber,omitempty"`
	TicketsPdf  string `json:"ticketsPdf,omitempty"`
}

type CancelPaymentRequest struct {
	PaymentID string `json:"paymentId"`
}

type PendingWhatsappRequest struct {
	Phone       string `json:"phone"`
	FirstName   string `json:"firstName"`
	OrderNumber string `json:"orderNumber"`
}

// ProcessingNotice is the body of PAYMENT_PROCESSING.
type ProcessingNotice struct {
	Message string `json:"message,omitempty"`
}
