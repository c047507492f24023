package auth

import (
	"errors"
	"testing"

	"github.com/danmuck/drivectl/internal/testutil/testlog"
)

func TestStaticTokenValidate(t *testing.T) {
	testlog.Start(t)

	tests := []struct {
		name    string
		stored  string
		input   string
		wantErr error
	}{
		{name: "empty token denied", stored: "", input: "abc", wantErr: ErrUnauthorized},
		{name: "mismatched token denied", stored: "abc", input: "xyz", wantErr: ErrUnauthorized},
		{name: "matching token accepted", stored: "abc", input: "abc", wantErr: nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := (StaticToken{Token: tc.stored}).Validate(tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected err %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestFromHeader(t *testing.T) {
	testlog.Start(t)

	cases := map[string]string{
		"Bearer s3cret":    "s3cret",
		"bearer  spaced ":  "spaced",
		"Basic dXNlcjpwdw": "",
		"s3cret":           "",
		"":                 "",
	}
	for header, want := range cases {
		if got := FromHeader(header); got != want {
			t.Fatalf("FromHeader(%q)=%q want %q", header, got, want)
		}
	}
}
