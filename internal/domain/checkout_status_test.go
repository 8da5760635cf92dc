package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	assert.True(t, CanTransitionTo(CheckoutStatusReady, CheckoutStatusSubmitting))
	assert.True(t, CanTransitionTo(CheckoutStatusSubmitting, CheckoutStatusFailed))
	assert.True(t, CanTransitionTo(CheckoutStatusFailed, CheckoutStatusSubmitting))
	assert.True(t, CanTransitionTo(CheckoutStatusFailed, CheckoutStatusMethodSelected))
	assert.True(t, CanTransitionTo(CheckoutStatusCompleted, CheckoutStatusEmpty))

	assert.False(t, CanTransitionTo(CheckoutStatusBuilding, CheckoutStatusSubmitting))
	assert.False(t, CanTransitionTo(CheckoutStatusMethodSelected, CheckoutStatusSubmitting))
	assert.False(t, CanTransitionTo(CheckoutStatusSubmitting, CheckoutStatusEmpty))
	assert.False(t, CanTransitionTo(CheckoutStatusCompleted, CheckoutStatusReady))
}

func TestCheckoutStatus_IsTerminal(t *testing.T) {
	assert.True(t, CheckoutStatusCompleted.IsTerminal())
	assert.True(t, CheckoutStatusFailed.IsTerminal())
	assert.False(t, CheckoutStatusSubmitting.IsTerminal())
}

func TestParsePaymentMethod(t *testing.T) {
	m, err := ParsePaymentMethod(" Cash ")
	assert.NoError(t, err)
	assert.Equal(t, PaymentMethodCash, m)

	_, err = ParsePaymentMethod("cheque")
	assert.ErrorIs(t, err, ErrUnknownMethod)
}
