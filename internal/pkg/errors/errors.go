package errors

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrNoCredential      = errors.New("missing api credential")
	ErrEmptyResponse     = errors.New("empty model response")
	ErrMalformedResponse = errors.New("malformed model response")
	ErrTokenMismatch     = errors.New("token mismatch")
	ErrWeightOutOfRange  = errors.New("weight out of range")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
