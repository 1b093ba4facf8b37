package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatalogue(t *testing.T) {
	assert.Len(t, Catalogue, 7)
	n, ok := Arity(SendMessage)
	assert.True(t, ok)
	assert.Equal(t, 3, n)
	_, ok = Arity(0)
	assert.False(t, ok)
	assert.Equal(t, "GET_UNDELIVERED_MESSAGES", Catalogue[GetUndeliveredMessages].Name)
}
