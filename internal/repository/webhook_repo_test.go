package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashPayload(t *testing.T) {
	payload := []byte(`{"TransID":"RKTQDM7W6S"}`)

	// Deterministic per channel+payload.
	assert.Equal(t, HashPayload("c2b_confirm", payload), HashPayload("c2b_confirm", payload))
	assert.Len(t, HashPayload("c2b_confirm", payload), 64)

	// The same payload on a different channel is a different event; a C2B
	// validate and its confirm carry identical bodies.
	assert.NotEqual(t, HashPayload("c2b_validate", payload), HashPayload("c2b_confirm", payload))

	// Any byte change is a new event.
	assert.NotEqual(t,
		HashPayload("c2b_confirm", payload),
		HashPayload("c2b_confirm", append(payload, ' ')),
	)
}
