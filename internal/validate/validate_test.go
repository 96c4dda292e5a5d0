package validate

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"actms/models"
)

func TestIndianMobile(t *testing.T) {
	cases := map[string]bool{
		"+91 98765 43210": true,
		"919876543210":    true,
		"+91-7000000000":  true,
		"+91 58765 43210": false,
		"9876543210":      false,
		"+92 98765 43210": false,
		"+91 98765 4321":  false,
		"":                false,
	}
	for in, want := range cases {
		require.Equal(t, want, IndianMobile(in), in)
	}
	require.Equal(t, "+91 98765 43210", FormatIndianMobile("919876543210"))
	require.Equal(t, "12345", FormatIndianMobile("12345"))
}

func validBid() models.CreateBidRequest {
	return models.CreateBidRequest{
		TenderID:     1,
		CompanyName:  "Acme",
		BidAmount:    decimal.NewFromInt(1000),
		ProposalText: "proposal",
		CompanyInfo:  models.CompanyInfo{Mobile: "+91 98765 43210"},
	}
}

func TestNewRegistersMobileRule(t *testing.T) {
	var v *Validator
	require.NotPanics(t, func() { v = New() })

	type contact struct {
		Mobile string `json:"mobile" validate:"in_mobile"`
	}
	require.NoError(t, v.Struct(contact{Mobile: "+91 98765 43210"}))
	err := v.Struct(contact{Mobile: "12345"})
	var verr *Error
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "mobile", verr.Field)
}

func TestStructMessages(t *testing.T) {
	v := New()
	require.NoError(t, v.Struct(validBid()))

	req := validBid()
	req.CompanyName = ""
	err := v.Struct(req)
	var verr *Error
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "company_name", verr.Field)
	require.Equal(t, "Missing required field: company_name", verr.Message)

	req = validBid()
	req.BidAmount = decimal.Zero
	require.EqualError(t, v.Struct(req), "bid_amount must be greater than 0")

	req = validBid()
	req.CompanyInfo.Mobile = "12345"
	err = v.Struct(req)
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "company_info.mobile", verr.Field)

	req = validBid()
	req.ContactEmail = "not-an-email"
	require.EqualError(t, v.Struct(req), "contact_email must be a valid email address")
}

func TestReviewVerdict(t *testing.T) {
	v := New()
	require.NoError(t, v.Struct(models.CreateReviewRequest{Verdict: "cleared"}))
	require.EqualError(t, v.Struct(models.CreateReviewRequest{Verdict: "maybe"}),
		"verdict must be one of: cleared, confirmed")
}
