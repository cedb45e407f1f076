package credit

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var balanceNow = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

func confirmedPurchase(id string, credits int64, expiresIn time.Duration) Purchase {
	return Purchase{
		ID:            id,
		AuthorID:      "a1",
		Credits:       credits,
		AmountPaid:    decimal.NewFromInt(credits),
		PurchasedAt:   balanceNow.Add(-30 * 24 * time.Hour),
		ExpiresAt:     balanceNow.Add(expiresIn),
		Activated:     true,
		PaymentStatus: PaymentConfirmed,
	}
}

func TestComputeBalanceSimple(t *testing.T) {
	purchases := []Purchase{confirmedPurchase("p1", 100, 90*24*time.Hour)}
	usages := []UsageRecord{
		{ID: "u1", PurchaseID: "p1", Credits: 25},
		{ID: "u2", PurchaseID: "p1", Credits: 15},
	}

	b := ComputeBalance(purchases, usages, 30*24*time.Hour, balanceNow)

	assert.Equal(t, int64(100), b.TotalPurchased)
	assert.Equal(t, int64(40), b.TotalUsed)
	assert.Equal(t, int64(60), b.Available)
	assert.Equal(t, 0, b.ExpiringCount)
	if assert.NotNil(t, b.NextExpiration) {
		assert.Equal(t, purchases[0].ExpiresAt, *b.NextExpiration)
	}
}

func TestComputeBalanceExpiredExcluded(t *testing.T) {
	purchases := []Purchase{
		confirmedPurchase("p1", 100, -24*time.Hour), // expired
		confirmedPurchase("p2", 50, 48*time.Hour),
	}

	b := ComputeBalance(purchases, nil, 30*24*time.Hour, balanceNow)

	// Expired purchases still count toward the historical total but not
	// toward spendable credits.
	assert.Equal(t, int64(150), b.TotalPurchased)
	assert.Equal(t, int64(50), b.Available)
	assert.Equal(t, 1, b.ExpiringCount)
}

func TestComputeBalanceUnactivatedForfeited(t *testing.T) {
	p := confirmedPurchase("p1", 100, 90*24*time.Hour)
	p.Activated = false

	b := ComputeBalance([]Purchase{p}, nil, 30*24*time.Hour, balanceNow)

	assert.Equal(t, int64(100), b.TotalPurchased)
	assert.Equal(t, int64(0), b.Available)
	assert.Nil(t, b.NextExpiration)
}

func TestComputeBalancePendingPaymentExcluded(t *testing.T) {
	p := confirmedPurchase("p1", 100, 90*24*time.Hour)
	p.PaymentStatus = PaymentPending

	b := ComputeBalance([]Purchase{p}, nil, 30*24*time.Hour, balanceNow)

	assert.Equal(t, int64(0), b.TotalPurchased)
	assert.Equal(t, int64(0), b.Available)
}

func TestComputeBalanceNextExpirationIsEarliest(t *testing.T) {
	purchases := []Purchase{
		confirmedPurchase("p1", 10, 60*24*time.Hour),
		confirmedPurchase("p2", 10, 10*24*time.Hour),
		confirmedPurchase("p3", 10, 90*24*time.Hour),
	}

	b := ComputeBalance(purchases, nil, 30*24*time.Hour, balanceNow)

	assert.Equal(t, int64(30), b.Available)
	assert.Equal(t, 1, b.ExpiringCount)
	if assert.NotNil(t, b.NextExpiration) {
		assert.Equal(t, purchases[1].ExpiresAt, *b.NextExpiration)
	}
}

func TestComputeBalanceOverdrawnPurchaseClamped(t *testing.T) {
	purchases := []Purchase{confirmedPurchase("p1", 10, 90*24*time.Hour)}
	usages := []UsageRecord{{ID: "u1", PurchaseID: "p1", Credits: 15}}

	b := ComputeBalance(purchases, usages, 30*24*time.Hour, balanceNow)

	assert.Equal(t, int64(15), b.TotalUsed)
	assert.Equal(t, int64(0), b.Available)
}

func TestComputeBalanceEmpty(t *testing.T) {
	b := ComputeBalance(nil, nil, 30*24*time.Hour, balanceNow)
	assert.Zero(t, b.TotalPurchased)
	assert.Zero(t, b.Available)
	assert.Nil(t, b.NextExpiration)
}
