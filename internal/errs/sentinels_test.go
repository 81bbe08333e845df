package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsClientVisible(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want bool
	}{
		{fmt.Errorf("message m1: %w", ErrNotFound), true},
		{fmt.Errorf("delete: %w", ErrForbidden), true},
		{ErrUnauthorized, true},
		{fmt.Errorf("payload: %w", ErrValidation), false},
		{errors.New("connection reset"), false},
		{nil, false},
	}
	for _, c := range cases {
		if got := IsClientVisible(c.err); got != c.want {
			t.Fatalf("IsClientVisible(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestPublic_HidesDetails(t *testing.T) {
	t.Parallel()

	if got := Public(fmt.Errorf("load message secret-id: %w", ErrNotFound)); got != "not found" {
		t.Fatalf("got %q", got)
	}
	if got := Public(errors.New("dial tcp 10.0.0.5:27017: refused")); got != "internal error" {
		t.Fatalf("got %q", got)
	}
}
