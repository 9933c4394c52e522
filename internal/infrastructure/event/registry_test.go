package event

import (
	"testing"

	"github.com/shopledger/backend/internal/domain/finance"
	"github.com/stretchr/testify/assert"
)

func TestHandlerRegistry_Register(t *testing.T) {
	t.Run("typed handlers come before wildcard handlers", func(t *testing.T) {
		registry := NewHandlerRegistry()
		typed := newRecordingHandler(finance.EventTypeInvoicePaid)
		wildcard := newRecordingHandler()

		registry.Register(wildcard)
		registry.Register(typed, finance.EventTypeInvoicePaid)

		handlers := registry.GetHandlers(finance.EventTypeInvoicePaid)
		assert.Len(t, handlers, 2)
		assert.Same(t, typed, handlers[0])
		assert.Same(t, wildcard, handlers[1])
	})

	t.Run("unknown event type returns only wildcard handlers", func(t *testing.T) {
		registry := NewHandlerRegistry()
		registry.Register(newRecordingHandler())
		registry.Register(newRecordingHandler(finance.EventTypeInvoicePaid), finance.EventTypeInvoicePaid)

		assert.Len(t, registry.GetHandlers("Unknown"), 1)
	})

	t.Run("registering twice is a no-op", func(t *testing.T) {
		registry := NewHandlerRegistry()
		h := newRecordingHandler(finance.EventTypeInvoicePaid)

		registry.Register(h, finance.EventTypeInvoicePaid)
		registry.Register(h, finance.EventTypeInvoicePaid)

		assert.Len(t, registry.GetHandlers(finance.EventTypeInvoicePaid), 1)
	})
}

func TestHandlerRegistry_Unregister(t *testing.T) {
	registry := NewHandlerRegistry()
	h := newRecordingHandler()
	other := newRecordingHandler()

	registry.Register(h, finance.EventTypeInvoicePaid, finance.EventTypeWalletCredited)
	registry.Register(h)
	registry.Register(other, finance.EventTypeInvoicePaid)

	registry.Unregister(h)

	assert.Empty(t, registry.GetHandlers(finance.EventTypeWalletCredited))
	paid := registry.GetHandlers(finance.EventTypeInvoicePaid)
	assert.Len(t, paid, 1)
	assert.Same(t, other, paid[0])
}

func TestHandlerRegistry_GetAllHandlers(t *testing.T) {
	registry := NewHandlerRegistry()
	a := newRecordingHandler()
	b := newRecordingHandler()

	registry.Register(a, finance.EventTypeInvoicePaid, finance.EventTypeInvoiceCancelled)
	registry.Register(a)
	registry.Register(b, finance.EventTypeWalletDebited)

	assert.Len(t, registry.GetAllHandlers(), 2)
}
