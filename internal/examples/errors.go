package examples

import "fmt"

// Category classifies a failed fetch.
type Category string

const (
	CategoryTransport Category = "transport"
	CategoryTimeout   Category = "timeout"
	CategoryBadStatus Category = "bad_status"
	CategoryReadBody  Category = "read_body"
)

// FetchError is the only error FetchRandomExample returns. Message is safe to
// show to an operator.
type FetchError struct {
	Category Category
	Message  string
	Err      error
}

func (e *FetchError) Error() string {
	return e.Message
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func newFetchError(cat Category, err error, format string, args ...any) *FetchError {
	return &FetchError{Category: cat, Message: fmt.Sprintf(format, args...), Err: err}
}
