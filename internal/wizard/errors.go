package wizard

import "errors"

var (
	ErrUnknownTicket   = errors.New("unknown ticket type")
	ErrSoldOut         = errors.New("ticket type is sold out")
	ErrInvalidQuantity = errors.New("quantity must not be negative")
	ErrNoSelection     = errors.New("select a ticket first")
	ErrGuestCount      = errors.New("one guest is required per ticket")
	ErrPayerRequired   = errors.New("payer details are required")
	ErrDetailsRequired = errors.New("guest details are incomplete")
	ErrStepLocked      = errors.New("step cannot be changed from here")
)
