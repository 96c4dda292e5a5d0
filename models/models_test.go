package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDeadline(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2030-05-01", time.Date(2030, 5, 1, 23, 59, 59, 0, time.UTC)},
		{"2030-05-01T10:30", time.Date(2030, 5, 1, 10, 30, 0, 0, time.UTC)},
		{"2030-05-01 10:30:15", time.Date(2030, 5, 1, 10, 30, 15, 0, time.UTC)},
		{"2030-05-01T10:30:00+02:00", time.Date(2030, 5, 1, 8, 30, 0, 0, time.UTC)},
		{"  2030-05-01  ", time.Date(2030, 5, 1, 23, 59, 59, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDeadline(tt.in)
			require.NoError(t, err)
			require.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	for _, bad := range []string{"", "tomorrow", "01/05/2030", "2030-13-01"} {
		_, err := ParseDeadline(bad)
		require.ErrorIs(t, err, ErrBadDeadline, bad)
	}
}

func TestCompanyInfoRoundTrip(t *testing.T) {
	in := CompanyInfo{Contact: "R. Sharma", Mobile: "+91 98765 43210", Website: "https://acme.example"}
	v, err := in.Value()
	require.NoError(t, err)
	require.IsType(t, "", v)

	var out CompanyInfo
	require.NoError(t, out.Scan([]byte(v.(string))))
	require.Equal(t, in, out)
}

func TestCompanyInfoScanEmpty(t *testing.T) {
	out := CompanyInfo{Contact: "stale"}
	require.NoError(t, out.Scan(nil))
	require.Equal(t, CompanyInfo{}, out)

	out.Contact = "stale"
	require.NoError(t, out.Scan(""))
	require.Equal(t, CompanyInfo{}, out)

	require.Error(t, out.Scan(42))
	require.Error(t, out.Scan("{not json"))
}
