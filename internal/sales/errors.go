package sales

import (
	"errors"
	"net/http"
)

var (
	ErrInvalidSale     = errors.New("invalid sale request")
	ErrTotalMismatch   = errors.New("total does not match the line items")
	ErrChangeMismatch  = errors.New("change does not match cash received minus total")
	ErrDuplicateLine   = errors.New("product appears on more than one line")
	ErrPriceChanged    = errors.New("unit price differs from the catalogue")
	ErrCashierRequired = errors.New("cashier is not authenticated")
)

// SubmitError is a rejection of a sale carrying the HTTP status the API reports for it.
type SubmitError struct {
	Status int
	Code   string
	Err    error
}

func (e *SubmitError) Error() string {
	return e.Err.Error()
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the same sale later may succeed.
func (e *SubmitError) Temporary() bool {
	return e.Status >= http.StatusInternalServerError
}

func badRequest(err error) *SubmitError {
	return &SubmitError{Status: http.StatusBadRequest, Code: "invalid_request", Err: err}
}

func conflict(code string, err error) *SubmitError {
	return &SubmitError{Status: http.StatusConflict, Code: code, Err: err}
}
