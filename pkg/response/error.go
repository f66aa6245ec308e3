package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	pkgErrors "github.com/tonyboom3d/exact-view-framework/pkg/errors"
)

const (
	CodeInternal   = 50001
	CodeValidation = 40002
)

type Resp struct {
	ErrorCode int    `json:"error_code"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	Errors    any    `json:"errors,omitempty"`
}

func parseHttpError(err error) (int, Resp) {
	var httpErr *pkgErrors.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status(), Resp{
			ErrorCode: httpErr.Code,
			Message:   httpErr.Message,
		}
	}
	return http.StatusInternalServerError, Resp{
		ErrorCode: CodeInternal,
		Message:   "Internal server error",
	}
}

// JSON writes data with statusCode. Encoding failures are dropped since
// the status line is already out.
func JSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// Error renders err. Anything that is not an *HTTPError becomes a 500.
func Error(w http.ResponseWriter, err error) {
	statusCode, resp := parseHttpError(err)
	JSON(w, statusCode, resp)
}

// ValidationError renders validator failures as a field -> rule map.
func ValidationError(w http.ResponseWriter, err error) {
	resp := Resp{ErrorCode: CodeValidation, Message: "Validation failed"}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		resp.Errors = fields
	}
	JSON(w, http.StatusBadRequest, resp)
}
