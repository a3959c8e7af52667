package models

import "errors"

var ErrNotFound = errors.New("requested resource not found")
var ErrValidation = errors.New("missing or invalid required input")
var ErrConfiguration = errors.New("required configuration is missing")
var ErrInvalidEventKind = errors.New("unrecognized webhook event kind")

// ErrorResponse is the JSON body returned for failed HTTP requests.
type ErrorResponse struct {
	Message string `json:"message"`
}
