package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"collabroom/internal/service"
)

func TestStatusForErrorTaxonomy(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{service.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: room xyz", service.ErrNotFound), http.StatusNotFound},
		{service.ErrValidation, http.StatusBadRequest},
		{service.ErrForbidden, http.StatusForbidden},
		{service.ErrRoomFull, http.StatusConflict},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{service.ErrSessionExpired, http.StatusUnauthorized},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, c := range cases {
		if got := statusFor(c.err); got != c.want {
			t.Errorf("statusFor(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}
