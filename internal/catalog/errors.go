package catalog

import "errors"

var ErrNotLoaded = errors.New("ticket data not yet loaded, please refresh the page")
