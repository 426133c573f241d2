package session

import (
	"encoding/json"
	"fmt"
	"net/http"
)

type ErrorKind int

const (
	KindNetwork ErrorKind = iota
	KindAuthExpired
	KindNotFound
	KindValidation
	KindConflict
	KindServer
)

var readableKind = []string{
	"network failure",
	"authentication expired",
	"not found",
	"validation",
	"conflict",
	"server error",
}

func (k ErrorKind) String() string {
	return readableKind[int(k)]
}

type APIError struct {
	Kind    ErrorKind
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind.String(), e.Message)
}

// IsKind reports whether err is an APIError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.Kind == kind
}

func errorFromResponse(response *http.Response) *APIError {
	message := response.Status
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(response.Body).Decode(&body); err == nil && body.Error != "" {
		message = body.Error
	}

	kind := KindServer
	switch response.StatusCode {
	case http.StatusUnauthorized:
		kind = KindAuthExpired
	case http.StatusNotFound:
		kind = KindNotFound
	case http.StatusBadRequest:
		kind = KindValidation
	case http.StatusConflict, http.StatusForbidden:
		kind = KindConflict
	}
	return &APIError{Kind: kind, Message: message}
}
