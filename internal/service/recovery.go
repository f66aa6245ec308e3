package service

import (
	"context"

	"github.com/tonyboom3d/exact-view-framework/internal/models"
)

type RecoveryKind string

const (
	RecoveryNone      RecoveryKind = "none"
	RecoveryCompleted RecoveryKind = "completed"
	RecoveryResumable RecoveryKind = "resumable"
)

type Recovery struct {
	Kind        RecoveryKind               `json:"kind"`
	OrderNumber string                     `json:"orderNumber,omitempty"`
	TicketsPdf  string                     `json:"ticketsPdf,omitempty"`
	Pending     *models.PendingPaymentData `json:"pending,omitempty"`
}

// Recover checks a stored pending payment once. A paid order completes
// directly, a still pending one is offered for resumption and anything
// else is discarded. When the status check itself fails the record is
// kept for the next visit.
func (o *PaymentOrchestrator) Recover(ctx context.Context) Recovery {
	p := o.LoadPendingPayment(ctx)
	if p == nil {
		return Recovery{Kind: RecoveryNone}
	}

	status, err := o.PollPaymentStatus(ctx, p.PaymentID)
	if err != nil {
		o.l.Warnf(ctx, "service.PaymentOrchestrator.Recover: order %s: %v", p.OrderNumber, err)
		return Recovery{Kind: RecoveryNone}
	}

	switch {
	case status.Status == models.PaymentStatusPaid:
		o.ClearPendingPayment(ctx)
		return Recovery{
			Kind:        RecoveryCompleted,
			OrderNumber: firstNonEmpty(status.OrderNumber, p.OrderNumber),
			TicketsPdf:  status.TicketsPdf,
		}
	case models.IsStillPending(status.Status):
		o.SetPending(*p)
		return Recovery{Kind: RecoveryResumable, Pending: p}
	}

	o.l.Infof(ctx, "service.PaymentOrchestrator.Recover: discarding order %s with status %q", p.OrderNumber, status.Status)
	o.ClearPendingPayment(ctx)
	return Recovery{Kind: RecoveryNone}
}
