package signalbus_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowrt/flowrt/pkg/signalbus"
)

func TestSignalWithValueDoesNotMutateReceiver(t *testing.T) {
	t.Parallel()

	orig := signalbus.Signal{Name: "a", Value: 1}
	copied := orig.WithValue(2)

	assert.Equal(t, 1, orig.Value)
	assert.Equal(t, 2, copied.Value)
	assert.Equal(t, orig.Name, copied.Name)
}
