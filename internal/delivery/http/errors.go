package http

import (
	"errors"
	"net/http"

	"github.com/tonyboom3d/exact-view-framework/internal/catalog"
	"github.com/tonyboom3d/exact-view-framework/internal/service"
	"github.com/tonyboom3d/exact-view-framework/internal/wizard"
	pkgErrors "github.com/tonyboom3d/exact-view-framework/pkg/errors"
)

var (
	errInvalidBody     = pkgErrors.NewHTTPError(40001, "Invalid request body")
	errUnauthorized    = pkgErrors.NewHTTPError(40101, "Missing or invalid session token").WithStatus(http.StatusUnauthorized)
	errSessionMismatch = pkgErrors.NewHTTPError(40301, service.ErrSessionMismatch.Error()).WithStatus(http.StatusForbidden)
	errSessionNotFound = pkgErrors.NewHTTPError(40401, "Session not found").WithStatus(http.StatusNotFound)
	errConflict        = pkgErrors.NewHTTPError(40901, "").WithStatus(http.StatusConflict)
	errWizard          = pkgErrors.NewHTTPError(42201, "").WithStatus(http.StatusUnprocessableEntity)
	errCatalog         = pkgErrors.NewHTTPError(50301, catalog.ErrNotLoaded.Error()).WithStatus(http.StatusServiceUnavailable)
)

var wizardErrors = []error{
	wizard.ErrUnknownTicket,
	wizard.ErrSoldOut,
	wizard.ErrInvalidQuantity,
	wizard.ErrNoSelection,
	wizard.ErrGuestCount,
	wizard.ErrPayerRequired,
	wizard.ErrDetailsRequired,
	wizard.ErrStepLocked,
}

// mapError turns service and wizard errors into HTTP errors. Unknown
// errors pass through and render as 500.
func mapError(err error) error {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return errSessionNotFound
	case errors.Is(err, service.ErrSessionMismatch):
		return errSessionMismatch
	case errors.Is(err, service.ErrTokenInvalid):
		return errUnauthorized
	case errors.Is(err, service.ErrCheckoutInProgress),
		errors.Is(err, service.ErrPollerRunning),
		errors.Is(err, service.ErrAlreadyResolved),
		errors.Is(err, service.ErrNoPendingPayment):
		return errConflict.WithMessage(err.Error())
	case errors.Is(err, catalog.ErrNotLoaded):
		return errCatalog
	}
	for _, werr := range wizardErrors {
		if errors.Is(err, werr) {
			return errWizard.WithMessage(err.Error())
		}
	}
	return err
}
