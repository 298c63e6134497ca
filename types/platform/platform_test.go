package platform

import (
	"errors"
	"testing"

	"github.com/ocipack/ocipack/types"
)

func TestParse(t *testing.T) {
	t.Parallel()
	tt := []struct {
		name    string
		parse   string
		want    Platform
		wantErr error
	}{
		{name: "empty", parse: "", wantErr: types.ErrParsingFailed},
		{name: "wildcard", parse: "linux/*", wantErr: types.ErrParsingFailed},
		{name: "linux amd64", parse: "linux/amd64", want: Platform{OS: "linux", Architecture: "amd64"}},
		{name: "linux amd64 v1", parse: "linux/amd64/v1", want: Platform{OS: "linux", Architecture: "amd64"}},
		{name: "linux arm v7", parse: "linux/arm/v7", want: Platform{OS: "linux", Architecture: "arm", Variant: "v7"}},
		{name: "windows amd64", parse: "windows/amd64", want: Platform{OS: "windows", Architecture: "amd64"}},
		{name: "too many parts", parse: "linux/amd64/v1/extra", wantErr: types.ErrParsingFailed},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.parse)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Errorf("expected error %v, received %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("expected %v, received %v", tc.want, got)
			}
		})
	}
}

func TestString(t *testing.T) {
	p := Platform{OS: "linux", Architecture: "arm", Variant: "v7"}
	if p.String() != "linux/arm/v7" {
		t.Errorf("unexpected string: %s", p.String())
	}
}
