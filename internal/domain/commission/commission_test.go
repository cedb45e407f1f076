package commission

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		rate   string
		want   string
	}{
		{"typical", "250", "20", "50"},
		{"rounding", "99.99", "15", "15"},
		{"fractional rate", "100", "12.5", "12.5"},
		{"zero rate", "100", "0", "0"},
		{"zero amount", "0", "20", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Calculate(
				decimal.RequireFromString(tt.amount),
				decimal.RequireFromString(tt.rate),
			)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestCalculateMalformedInput(t *testing.T) {
	_, err := Calculate(decimal.NewFromInt(-1), decimal.NewFromInt(20))
	assert.ErrorIs(t, err, ErrMalformedInput)

	_, err = Calculate(decimal.NewFromInt(100), decimal.NewFromInt(-5))
	assert.ErrorIs(t, err, ErrMalformedInput)

	_, err = Calculate(decimal.NewFromInt(100), decimal.NewFromInt(101))
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestNextTransitions(t *testing.T) {
	tests := []struct {
		current Status
		event   Event
		next    Status
		changed bool
	}{
		{StatusPending, EventHoldingPeriodElapsed, StatusApproved, true},
		{StatusPending, EventAdminApprove, StatusApproved, true},
		{StatusPending, EventRefunded, StatusCancelled, true},
		{StatusPending, EventAdminCancel, StatusCancelled, true},
		{StatusPending, EventAdminPay, StatusPending, false},

		{StatusApproved, EventAdminPay, StatusPaid, true},
		{StatusApproved, EventRefunded, StatusCancelled, true},
		{StatusApproved, EventAdminCancel, StatusCancelled, true},
		{StatusApproved, EventAdminApprove, StatusApproved, false},
		{StatusApproved, EventHoldingPeriodElapsed, StatusApproved, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.current)+"/"+string(tt.event), func(t *testing.T) {
			next, changed := Next(tt.current, tt.event)
			assert.Equal(t, tt.next, next)
			assert.Equal(t, tt.changed, changed)
		})
	}
}

func TestTerminalStatesAbsorbEverything(t *testing.T) {
	events := []Event{
		EventHoldingPeriodElapsed,
		EventRefunded,
		EventAdminApprove,
		EventAdminPay,
		EventAdminCancel,
	}

	for _, terminal := range []Status{StatusPaid, StatusCancelled} {
		for _, ev := range events {
			next, changed := Next(terminal, ev)
			assert.Equal(t, terminal, next, "%s must absorb %s", terminal, ev)
			assert.False(t, changed)
		}
	}
}
