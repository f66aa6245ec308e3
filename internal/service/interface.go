package service

import (
	"context"
	"time"

	"github.com/tonyboom3d/exact-view-framework/internal/models"
	"github.com/tonyboom3d/exact-view-framework/internal/wizard"
)

type CheckoutService interface {
	OpenSession(ctx context.Context, deviceID string) (*OpenSessionOutput, error)
	GetSession(ctx context.Context, sessionID string) (*SessionView, error)
	CloseSession(ctx context.Context, sessionID string) error

	Tickets(ctx context.Context) []models.TicketInfo
	SelectTicket(ctx context.Context, sessionID string, in SelectTicketInput) (*SessionView, error)
	UpdateDetails(ctx context.Context, sessionID string, in wizard.Details) (*SessionView, error)
	Next(ctx context.Context, sessionID string) (*SessionView, error)
	Back(ctx context.Context, sessionID string) (*SessionView, error)
	Reset(ctx context.Context, sessionID string) (*SessionView, error)

	SubmitPayment(ctx context.Context, sessionID string) (*SessionView, error)
	CancelPending(ctx context.Context, sessionID string) (*SessionView, error)
	ResumePending(ctx context.Context, sessionID string) (*SessionView, error)
	DiscardPending(ctx context.Context, sessionID string) (*SessionView, error)

	SweepIdle(ctx context.Context) int
	Shutdown(ctx context.Context) error
}

// CatalogSource is the live ticket catalog.
type CatalogSource interface {
	Tickets() []models.TicketInfo
	Lookup(typ string) (models.TicketInfo, bool)
	EnsureWixData(ctx context.Context, timeout time.Duration) ([]models.TicketInfo, error)
}

// Recorder receives checkout outcomes for metrics.
type Recorder interface {
	CheckoutFinished(status string)
	PollFinished(phase string)
	Recovered(kind string)
	ActiveSessions(n int)
}

type nopRecorder struct{}

func (nopRecorder) CheckoutFinished(string) {}
func (nopRecorder) PollFinished(string)     {}
func (nopRecorder) Recovered(string)        {}
func (nopRecorder) ActiveSessions(int)      {}
