package service

import (
	"time"

	"github.com/tonyboom3d/exact-view-framework/internal/wizard"
)

type OpenSessionOutput struct {
	SessionID string       `json:"session_id"`
	DeviceID  string       `json:"device_id"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	View      *SessionView `json:"view"`
}

type SelectTicketInput struct {
	Type     string `json:"type" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=0,lte=20"`
}

type SessionView struct {
	SessionID  string        `json:"session_id"`
	Wizard     wizard.View   `json:"wizard"`
	Payment    PaymentState  `json:"payment"`
	Poll       *PollSnapshot `json:"poll,omitempty"`
	Recovery   *Recovery     `json:"recovery,omitempty"`
	Submitting bool          `json:"submitting"`
	Notice     string        `json:"notice,omitempty"`
}
