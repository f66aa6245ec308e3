package wizard

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonyboom3d/exact-view-framework/internal/models"
)

type staticCatalog []models.TicketInfo

func (c staticCatalog) Lookup(typ string) (models.TicketInfo, bool) {
	for _, t := range c {
		if t.Matches(typ) {
			return t, true
		}
	}
	return models.TicketInfo{}, false
}

func testCatalog() staticCatalog {
	return staticCatalog{
		{Type: "general", Name: "General Admission", Price: 2900},
		{Type: "vip", Name: "VIP Experience", Price: 4500},
		{Type: "balcony", Name: "Balcony", Price: 1800, SoldOut: true},
	}
}

func guest(first string) models.GuestInfo {
	return models.GuestInfo{FirstName: first, LastName: "Levi", Phone: "0501234567", Email: strings.ToLower(first) + "@example.com"}
}

func TestSelectIsExclusive(t *testing.T) {
	w := New(testCatalog(), nil)

	require.NoError(t, w.Select("general", 3))
	require.NoError(t, w.Select("vip", 2))

	assert.Equal(t, []models.TicketSelection{{Type: "vip", Quantity: 2}}, w.Selections())
	assert.InDelta(t, 9000, w.TotalPrice(), 0)
	assert.Len(t, w.Details().Guests, 2)

	require.NoError(t, w.Select("vip", 0))
	assert.Empty(t, w.Selections())
	assert.Zero(t, w.TotalPrice())
}

func TestSelectRejects(t *testing.T) {
	w := New(testCatalog(), nil)

	assert.ErrorIs(t, w.Select("balcony", 1), ErrSoldOut)
	assert.ErrorIs(t, w.Select("backstage", 1), ErrUnknownTicket)
	assert.ErrorIs(t, w.Select("vip", -1), ErrInvalidQuantity)
	assert.Empty(t, w.Selections())
}

func TestGuestsFollowTicketCount(t *testing.T) {
	w := New(testCatalog(), nil)
	require.NoError(t, w.Select("general", 2))
	require.NoError(t, w.Next())
	require.NoError(t, w.SetDetails(Details{Guests: []models.GuestInfo{guest("Noa"), guest("Omer")}}))

	require.NoError(t, w.Back())
	require.NoError(t, w.Select("general", 3))
	guests := w.Details().Guests
	require.Len(t, guests, 3)
	assert.Equal(t, "Noa", guests[0].FirstName)
	assert.Equal(t, "Omer", guests[1].FirstName)
	assert.Empty(t, guests[2].FirstName)

	require.NoError(t, w.Select("general", 1))
	assert.Len(t, w.Details().Guests, 1)
}

func TestStepGuards(t *testing.T) {
	w := New(testCatalog(), nil)

	assert.ErrorIs(t, w.Next(), ErrNoSelection)
	require.NoError(t, w.Select("vip", 1))
	require.NoError(t, w.Next())
	assert.Equal(t, StepDetails, w.Step())

	assert.ErrorIs(t, w.Next(), ErrDetailsRequired)
	assert.ErrorIs(t, w.Select("general", 1), ErrStepLocked)

	require.NoError(t, w.SetDetails(Details{Guests: []models.GuestInfo{guest("Maya")}}))
	require.NoError(t, w.Next())
	assert.Equal(t, StepPayment, w.Step())
	assert.ErrorIs(t, w.Next(), ErrStepLocked)

	w.Complete("10021", "https://example.com/t.pdf")
	assert.Equal(t, StepConfirmation, w.Step())
	assert.ErrorIs(t, w.Back(), ErrStepLocked)

	v := w.View()
	assert.Equal(t, "confirmation", v.StepName)
	assert.Equal(t, "10021", v.OrderNumber)

	w.Reset()
	assert.Equal(t, StepTickets, w.Step())
	assert.Empty(t, w.Selections())
}

func TestSetDetailsValidation(t *testing.T) {
	tests := []struct {
		name    string
		details Details
		wantErr error
	}{
		{"wrong guest count", Details{Guests: []models.GuestInfo{guest("A")}}, ErrGuestCount},
		{"missing phone", Details{Guests: []models.GuestInfo{guest("A"), {FirstName: "B", LastName: "C"}}}, ErrDetailsRequired},
		{"bad email", Details{Guests: []models.GuestInfo{guest("A"), {FirstName: "B", LastName: "C", Phone: "1", Email: "nope"}}}, ErrDetailsRequired},
		{"payer missing", Details{Guests: []models.GuestInfo{guest("A"), guest("B")}, SeparatePayer: true}, ErrPayerRequired},
		{"payer invalid", Details{Guests: []models.GuestInfo{guest("A"), guest("B")}, SeparatePayer: true, Payer: &models.BuyerInfo{FirstName: "P"}}, ErrDetailsRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New(testCatalog(), nil)
			require.NoError(t, w.Select("general", 2))
			require.NoError(t, w.Next())
			assert.ErrorIs(t, w.SetDetails(tt.details), tt.wantErr)
			assert.False(t, w.View().DetailsValid)
		})
	}
}

func TestSetDetailsIgnoresPayerWhenNotSeparate(t *testing.T) {
	w := New(testCatalog(), nil)
	require.NoError(t, w.Select("general", 1))
	require.NoError(t, w.Next())

	err := w.SetDetails(Details{Guests: []models.GuestInfo{guest("A")}, Payer: &models.BuyerInfo{}})
	require.NoError(t, err)
	assert.True(t, w.View().DetailsValid)
}
