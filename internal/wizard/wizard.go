// Package wizard holds the four-step checkout form state: ticket choice,
// guest details, payment and confirmation.
package wizard

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/tonyboom3d/exact-view-framework/internal/models"
)

type Step int

const (
	StepTickets Step = iota + 1
	StepDetails
	StepPayment
	StepConfirmation
)

func (s Step) String() string {
	switch s {
	case StepTickets:
		return "tickets"
	case StepDetails:
		return "details"
	case StepPayment:
		return "payment"
	case StepConfirmation:
		return "confirmation"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// Catalog is the live ticket list the wizard prices against.
type Catalog interface {
	Lookup(typ string) (models.TicketInfo, bool)
}

type Details struct {
	Guests        []models.GuestInfo `json:"guests"`
	SeparatePayer bool               `json:"separatePayer"`
	Payer         *models.BuyerInfo  `json:"payer,omitempty"`
	CompanyName   string             `json:"companyName,omitempty"`
}

type View struct {
	Step         Step                     `json:"step"`
	StepName     string                   `json:"stepName"`
	Selections   []models.TicketSelection `json:"selections"`
	TicketCount  int                      `json:"ticketCount"`
	TotalPrice   float64                  `json:"totalPrice"`
	Details      Details                  `json:"details"`
	DetailsValid bool                     `json:"detailsValid"`
	OrderNumber  string                   `json:"orderNumber,omitempty"`
	TicketsPdf   string                   `json:"ticketsPdf,omitempty"`
}

// Wizard is not safe for concurrent use.
type Wizard struct {
	catalog  Catalog
	validate *validator.Validate

	step         Step
	selection    *models.TicketSelection
	details      Details
	detailsValid bool
	orderNumber  string
	ticketsPdf   string
}

func New(catalog Catalog, validate *validator.Validate) *Wizard {
	if validate == nil {
		validate = validator.New()
	}
	return &Wizard{catalog: catalog, validate: validate, step: StepTickets}
}

func (w *Wizard) Step() Step { return w.step }

// Select replaces the current selection. Quantity zero clears it.
func (w *Wizard) Select(typ string, qty int) error {
	if w.step != StepTickets {
		return ErrStepLocked
	}
	if qty < 0 {
		return ErrInvalidQuantity
	}
	if qty == 0 {
		w.selection = nil
		w.syncGuests(0)
		return nil
	}

	t, ok := w.catalog.Lookup(typ)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTicket, typ)
	}
	if t.SoldOut {
		return fmt.Errorf("%w: %s", ErrSoldOut, t.Name)
	}

	w.selection = &models.TicketSelection{Type: t.Type, Quantity: qty}
	w.syncGuests(qty)
	return nil
}

func (w *Wizard) Selections() []models.TicketSelection {
	if w.selection == nil {
		return nil
	}
	return []models.TicketSelection{*w.selection}
}

func (w *Wizard) TicketCount() int {
	if w.selection == nil {
		return 0
	}
	return w.selection.Quantity
}

// TotalPrice is priced from the live catalog, so a host price override
// applies even after the selection was made.
func (w *Wizard) TotalPrice() float64 {
	var total float64
	for _, s := range w.Selections() {
		if t, ok := w.catalog.Lookup(s.Type); ok {
			total += t.Price * float64(s.Quantity)
		}
	}
	return total
}

// syncGuests keeps exactly one guest slot per ticket, preserving entries
// already typed in.
func (w *Wizard) syncGuests(n int) {
	guests := w.details.Guests
	switch {
	case len(guests) > n:
		guests = guests[:n]
	case len(guests) < n:
		guests = append(guests, make([]models.GuestInfo, n-len(guests))...)
	}
	w.details.Guests = guests
	w.detailsValid = false
}

func (w *Wizard) SetDetails(d Details) error {
	if w.step != StepDetails {
		return ErrStepLocked
	}
	w.detailsValid = false
	w.details = d

	if len(d.Guests) != w.TicketCount() {
		return fmt.Errorf("%w: have %d, need %d", ErrGuestCount, len(d.Guests), w.TicketCount())
	}
	for i, g := range d.Guests {
		if err := w.validate.Struct(g); err != nil {
			return fmt.Errorf("%w: guest %d: %v", ErrDetailsRequired, i+1, err)
		}
	}
	if d.SeparatePayer {
		if d.Payer == nil {
			return ErrPayerRequired
		}
		if err := w.validate.Struct(d.Payer); err != nil {
			return fmt.Errorf("%w: payer: %v", ErrDetailsRequired, err)
		}
	}
	if err := w.validate.Var(d.CompanyName, "max=120"); err != nil {
		return fmt.Errorf("%w: company name: %v", ErrDetailsRequired, err)
	}

	w.detailsValid = true
	return nil
}

func (w *Wizard) Details() Details { return w.details }

func (w *Wizard) Next() error {
	switch w.step {
	case StepTickets:
		if w.TicketCount() == 0 {
			return ErrNoSelection
		}
		w.step = StepDetails
	case StepDetails:
		if !w.detailsValid {
			return ErrDetailsRequired
		}
		w.step = StepPayment
	default:
		return ErrStepLocked
	}
	return nil
}

func (w *Wizard) Back() error {
	switch w.step {
	case StepDetails:
		w.step = StepTickets
	case StepPayment:
		w.step = StepDetails
	default:
		return ErrStepLocked
	}
	return nil
}

// Complete jumps to confirmation from any step. Recovery of an already
// paid order lands here directly.
func (w *Wizard) Complete(orderNumber, ticketsPdf string) {
	w.step = StepConfirmation
	w.orderNumber = orderNumber
	w.ticketsPdf = ticketsPdf
}

func (w *Wizard) Reset() {
	*w = Wizard{catalog: w.catalog, validate: w.validate, step: StepTickets}
}

func (w *Wizard) View() View {
	return View{
		Step:         w.step,
		StepName:     w.step.String(),
		Selections:   w.Selections(),
		TicketCount:  w.TicketCount(),
		TotalPrice:   w.TotalPrice(),
		Details:      w.details,
		DetailsValid: w.detailsValid,
		OrderNumber:  w.orderNumber,
		TicketsPdf:   w.ticketsPdf,
	}
}
