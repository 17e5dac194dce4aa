package utils

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"regexp"
	"strconv"
	"strings"

	"qrshop/src/config"
	"qrshop/src/lib"

	"github.com/gosimple/slug"
	"github.com/stripe/stripe-go/v82"
)

var (
	handleDisallowed = regexp.MustCompile(`[^a-z0-9\-_]+`)
	handleDashRuns   = regexp.MustCompile(`-{2,}`)
	phoneE164        = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)
)

// NormalizeHandle reduces free-form input to the canonical tenant handle
// shape: lowercase [a-z0-9-_], no dash runs, no edge dashes, at most 32
// characters. Empty output means "no tenant", never "main site".
func NormalizeHandle(s string) string {
	h := strings.ToLower(strings.TrimSpace(s))
	if strings.ContainsAny(h, " \t.") {
		h = slug.Make(h)
	}
	h = handleDisallowed.ReplaceAllString(h, "")
	h = handleDashRuns.ReplaceAllString(h, "-")
	h = strings.Trim(h, "-")
	if len(h) > config.MAX_HANDLE_LENGTH {
		h = h[:config.MAX_HANDLE_LENGTH]
		h = strings.Trim(h, "-")
	}
	return h
}

// HandleFromHost extracts a tenant handle from the request host. Only a
// single-label subdomain of baseDomain counts; www and the apex itself do not.
func HandleFromHost(host string, baseDomain string) string {
	if host == "" || baseDomain == "" {
		return ""
	}
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	host = strings.ToLower(host)
	if host == baseDomain || strings.HasPrefix(host, "www.") {
		return ""
	}
	suffix := "." + baseDomain
	if !strings.HasSuffix(host, suffix) {
		return ""
	}
	sub := strings.TrimSuffix(host, suffix)
	if strings.Contains(sub, ".") {
		return ""
	}
	return NormalizeHandle(sub)
}

var ErrInvalidPrice = errors.New("price is not a positive amount")

// ParsePriceCents extracts an integer minor-unit amount from free-form price
// text: "$35", "35", "35.00" and "$1,234.50" all parse; zero, negative and
// non-numeric input do not.
func ParsePriceCents(s string) (int64, error) {
	raw := strings.TrimSpace(s)
	if raw == "" || strings.Contains(raw, "-") {
		return 0, ErrInvalidPrice
	}
	var sb strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' || r == '.' {
			sb.WriteRune(r)
		}
	}
	cleaned := sb.String()
	if cleaned == "" {
		return 0, ErrInvalidPrice
	}
	parts := strings.Split(cleaned, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidPrice
	}
	whole := parts[0]
	frac := ""
	if len(parts) == 2 {
		frac = parts[1]
	}
	if whole == "" && frac == "" {
		return 0, ErrInvalidPrice
	}
	if whole == "" {
		whole = "0"
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, ErrInvalidPrice
	}
	if len(frac) > 2 {
		frac = frac[:2]
	}
	for len(frac) < 2 {
		frac += "0"
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, ErrInvalidPrice
	}
	amount := units*100 + cents
	if amount <= 0 {
		return 0, ErrInvalidPrice
	}
	return amount, nil
}

// PlatformFeeCents computes the clamped platform cut. The processor rejects a
// fee equal to or above the charge total, so the fee never exceeds amount-1.
func PlatformFeeCents(amountCents int64, percent float64) int64 {
	if percent < 0 {
		percent = 0
	}
	if percent > 20 {
		percent = 20
	}
	fee := int64(float64(amountCents) * percent / 100)
	if fee >= amountCents {
		fee = amountCents - 1
	}
	if fee < 0 {
		fee = 0
	}
	return fee
}

// IsConnectedAccountID checks the shape of a stored payment account id.
func IsConnectedAccountID(id string) bool {
	return strings.HasPrefix(id, "acct_") && len(id) > len("acct_")
}

// IsE164Phone reports whether a customer contact can receive SMS.
func IsE164Phone(phone string) bool {
	return phoneE164.MatchString(phone)
}

// CreateConnectAccount provisions an express account for a seller and returns
// the account plus the hosted onboarding link.
func CreateConnectAccount(ctx context.Context, handle string, email string) (*stripe.Account, string, error) {
	sc := lib.GetStripeClient()
	acc, err := sc.V1Accounts.Create(ctx, &stripe.AccountCreateParams{
		BusinessProfile: &stripe.AccountCreateBusinessProfileParams{
			Name: stripe.String(handle),
		},
		Type:     stripe.String("express"),
		Email:    stripe.String(email),
		Metadata: map[string]string{"handle": handle},
		Capabilities: &stripe.AccountCreateCapabilitiesParams{
			CardPayments: &stripe.AccountCreateCapabilitiesCardPaymentsParams{Requested: stripe.Bool(true)},
			Transfers: &stripe.AccountCreateCapabilitiesTransfersParams{
				Requested: stripe.Bool(true),
			},
		},
	})
	if err != nil {
		log.Printf("Error creating account for site [%s]: %s\n", handle, err.Error())
		return nil, "", err
	}
	link, err := sc.V1AccountLinks.Create(ctx, &stripe.AccountLinkCreateParams{
		Account:    stripe.String(acc.ID),
		Type:       stripe.String("account_onboarding"),
		ReturnURL:  stripe.String(fmt.Sprint(os.Getenv("APP_HOST"), "/dashboard")),
		RefreshURL: stripe.String(fmt.Sprint(os.Getenv("APP_HOST"), "/callback/account/refresh")),
	})
	if err != nil {
		return acc, "", err
	}
	return acc, link.URL, nil
}
