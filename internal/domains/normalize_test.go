package domains

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "plain", in: "acme.com", want: "acme.com"},
		{name: "uppercase", in: "ACME.Com", want: "acme.com"},
		{name: "scheme stripped", in: "https://acme.com", want: "acme.com"},
		{name: "path stripped", in: "https://acme.com/security", want: "acme.com"},
		{name: "port stripped", in: "acme.com:8443", want: "acme.com"},
		{name: "www stripped", in: "www.acme.com", want: "acme.com"},
		{name: "email at-sign stripped", in: "@corp.example.org", want: "corp.example.org"},
		{name: "trailing dot stripped", in: "acme.com.", want: "acme.com"},
		{name: "subdomain kept", in: "mail.acme.com", want: "mail.acme.com"},
		{name: "whitespace trimmed", in: "  acme.com  ", want: "acme.com"},
		{name: "empty", in: "", wantErr: true},
		{name: "no tld", in: "localhost", wantErr: true},
		{name: "bare scheme", in: "https://", wantErr: true},
		{name: "leading hyphen", in: "-acme.com", wantErr: true},
		{name: "spaces inside", in: "ac me.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidDomain)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
