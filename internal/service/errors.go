package service

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionMismatch = errors.New("session does not belong to this device")
	ErrTokenInvalid    = errors.New("invalid session token")

	ErrCheckoutInProgress = errors.New("a checkout is already in progress")
	ErrNoSelection        = errors.New("no tickets selected")
	ErrUnknownTicketType  = errors.New("selected ticket type is not in the catalog")
	ErrNoPendingPayment   = errors.New("no pending payment")
	ErrPollerRunning      = errors.New("payment status is already being checked")
	ErrAlreadyResolved    = errors.New("pending payment already resolved")
)

const (
	msgPreparing          = "Preparing your order..."
	msgProcessing         = "Processing payment..."
	msgHostProcessing     = "Your payment is being processed..."
	msgCancelled          = "payment process cancelled"
	msgPaymentFailed      = "payment failed, please try again"
	msgPaymentUnfinished  = "The payment was not completed, please try again"
	msgPendingFailed      = "The payment was declined, please try again"
	msgSomethingWentWrong = "something went wrong"
)
