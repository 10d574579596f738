package color

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func withColor(t *testing.T, on bool) {
	t.Helper()
	origEnabled := state.enabled.Load()
	origOverridden := state.overridden.Load()
	if on {
		Enable()
	} else {
		Disable()
	}
	t.Cleanup(func() {
		state.enabled.Store(origEnabled)
		state.overridden.Store(origOverridden)
	})
}

func TestEnableDisable(t *testing.T) {
	withColor(t, true)
	assert.True(t, Enabled())

	Disable()
	assert.False(t, Enabled())
}

func TestColorFuncs(t *testing.T) {
	withColor(t, true)

	tests := []struct {
		name string
		fn   func(string) string
		code string
	}{
		{"Redf", Redf, Red},
		{"Greenf", Greenf, Green},
		{"Yellowf", Yellowf, Yellow},
		{"Bluef", Bluef, Blue},
		{"Cyanf", Cyanf, Cyan},
		{"Boldf", Boldf, Bold},
		{"Dimf", Dimf, DimCode},
		{"Ref", Ref, Cyan},
		{"Header", Header, Bold},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code+"test"+Reset, tt.fn("test"))
		})
	}
}

func TestDisabledIsPlain(t *testing.T) {
	withColor(t, false)

	assert.Equal(t, "x", Success("x"))
	assert.Equal(t, "x", Error("x"))
	assert.Equal(t, "x", Server("x"))
	assert.Equal(t, "x", Update("deleted", "x"))
	assert.Equal(t, "n=1", Warningf("n=%d", 1))
}

func TestUpdate(t *testing.T) {
	withColor(t, true)

	assert.Equal(t, Green+"a"+Reset, Update("sent", "a"))
	assert.Equal(t, Green+"a"+Reset, Update("created", "a"))
	assert.Equal(t, Blue+"a"+Reset, Update("received", "a"))
	assert.Equal(t, Red+"a"+Reset, Update("deleted", "a"))
	assert.Equal(t, Yellow+"a"+Reset, Update("attributes", "a"))
	assert.Equal(t, "a", Update("other", "a"))
}

func TestServer(t *testing.T) {
	withColor(t, true)
	assert.Equal(t, Bold+Magenta+"live"+Reset, Server("live"))
}
