package json

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mailbox struct {
	Owner    string   `json:"owner"`
	Messages []string `json:"messages"`
}

func TestMarshalSortedKeys(t *testing.T) {
	data, err := Marshal(map[string]int{"b": 2, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2}`, string(data))
}

func TestUnmarshal(t *testing.T) {
	var mb mailbox
	require.NoError(t, Unmarshal([]byte(`{"owner":"bob","messages":["hi","yo"]}`), &mb))
	assert.Equal(t, mailbox{Owner: "bob", Messages: []string{"hi", "yo"}}, mb)

	assert.True(t, Valid([]byte(`{"x":1}`)))
	assert.False(t, Valid([]byte(`{"x":`)))
	assert.Error(t, Unmarshal([]byte(`{"owner":`), &mb))
}
