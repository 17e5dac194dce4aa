package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeHandle(t *testing.T) {
	assert.Equal(t, "demo-barber", NormalizeHandle("Demo Barber"))
	assert.Equal(t, "demo-barber", NormalizeHandle("demo--barber"))
	assert.Equal(t, "demo-barber", NormalizeHandle("  demo-barber  "))
	assert.Equal(t, "cafe-9", NormalizeHandle("Café #9"))
	assert.Equal(t, "under_score", NormalizeHandle("under_score"))
	assert.Equal(t, "", NormalizeHandle("---"))
	assert.Equal(t, "", NormalizeHandle(""))
	assert.Equal(t, "", NormalizeHandle("!!!"))

	long := NormalizeHandle("a-very-long-handle-that-goes-on-and-on-forever")
	assert.LessOrEqual(t, len(long), 32)
	assert.NotEqual(t, byte('-'), long[len(long)-1])
}

func TestHandleFromHost(t *testing.T) {
	base := "qrshop.app"
	assert.Equal(t, "demo-barber", HandleFromHost("demo-barber.qrshop.app", base))
	assert.Equal(t, "demo-barber", HandleFromHost("demo-barber.qrshop.app:443", base))
	assert.Equal(t, "demo-barber", HandleFromHost("Demo-Barber.QRShop.app", base))
	assert.Equal(t, "", HandleFromHost("qrshop.app", base))
	assert.Equal(t, "", HandleFromHost("www.qrshop.app", base))
	assert.Equal(t, "", HandleFromHost("a.b.qrshop.app", base))
	assert.Equal(t, "", HandleFromHost("other.example.com", base))
	assert.Equal(t, "", HandleFromHost("demo-barber.qrshop.app", ""))
}

func TestParsePriceCents(t *testing.T) {
	valid := map[string]int64{
		"$35":       3500,
		"35":        3500,
		"35.00":     3500,
		"35.5":      3550,
		"$1,234.50": 123450,
		"0.01":      1,
		".50":       50,
	}
	for in, want := range valid {
		got, err := ParsePriceCents(in)
		assert.Nil(t, err, "input %q", in)
		assert.Equal(t, want, got, "input %q", in)
	}

	for _, in := range []string{"", "0", "0.00", "-5", "abc", "$", "1.2.3"} {
		_, err := ParsePriceCents(in)
		assert.ErrorIs(t, err, ErrInvalidPrice, "input %q", in)
	}
}

func TestPlatformFeeCents(t *testing.T) {
	assert.Equal(t, int64(350), PlatformFeeCents(3500, 10))
	assert.Equal(t, int64(0), PlatformFeeCents(3500, 0))
	assert.Equal(t, int64(0), PlatformFeeCents(3500, -5))
	// clamped at 20 percent
	assert.Equal(t, int64(700), PlatformFeeCents(3500, 50))
	// fee can never reach the full charge amount
	assert.Equal(t, int64(0), PlatformFeeCents(1, 20))
}

func TestIsConnectedAccountID(t *testing.T) {
	assert.True(t, IsConnectedAccountID("acct_1abc"))
	assert.False(t, IsConnectedAccountID("acct_"))
	assert.False(t, IsConnectedAccountID(""))
	assert.False(t, IsConnectedAccountID("cus_123"))
}

func TestIsE164Phone(t *testing.T) {
	assert.True(t, IsE164Phone("+15551234567"))
	assert.False(t, IsE164Phone("15551234567"))
	assert.False(t, IsE164Phone("+0123"))
	assert.False(t, IsE164Phone(""))
}
