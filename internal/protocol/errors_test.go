package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrBadRequest,
		ErrAlreadyRunning,
		ErrInsufficientEntropy,
		ErrInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	// An undefined statistic travels as a verdict, never as an error code.
	for _, c := range []string{"E_NOT_DEFINED", "E_NOT_ENOUGH_DATA"} {
		if IsKnownCode(c) {
			t.Fatalf("expected unknown code rejected: %q", c)
		}
	}
}
