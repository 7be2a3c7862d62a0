package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderIsTerminal(t *testing.T) {
	assert.False(t, (&Order{Status: OrderStatusPending}).IsTerminal())
	assert.False(t, (&Order{Status: OrderStatusPaid}).IsTerminal())
	assert.True(t, (&Order{Status: OrderStatusDelivered}).IsTerminal())
	assert.True(t, (&Order{Status: OrderStatusCancelled}).IsTerminal())
}

func TestOrderIsDelivered(t *testing.T) {
	// Status alone is not enough, content must be attached too.
	assert.False(t, (&Order{Status: OrderStatusDelivered}).IsDelivered())
	assert.False(t, (&Order{Status: OrderStatusPaid, DeliveredContent: StringList{"KEY-1"}}).IsDelivered())
	assert.True(t, (&Order{Status: OrderStatusDelivered, DeliveredContent: StringList{"KEY-1"}}).IsDelivered())
}
