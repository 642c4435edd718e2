package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionMode(t *testing.T) {
	nr := 10.0
	lte := 5.0

	assert.Equal(t, "NSA", (&SignalSample{NRSinr: &nr, LTESinr: &lte}).ConnectionMode())
	assert.Equal(t, "SA", (&SignalSample{NRSinr: &nr}).ConnectionMode())
	assert.Equal(t, "LTE", (&SignalSample{LTESinr: &lte}).ConnectionMode())
	assert.Equal(t, "No Signal", (&SignalSample{}).ConnectionMode())
}

func TestHasSignal(t *testing.T) {
	v := 1.0
	assert.False(t, (&SignalSample{}).HasSignal())
	assert.True(t, (&SignalSample{NRSinr: &v}).HasSignal())
	assert.True(t, (&SignalSample{LTERssi: &v}).HasSignal())
}
