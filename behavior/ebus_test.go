package behavior

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventIndex(t *testing.T) {
	lb := NewLocalBus("TickBus",
		Event{Name: "onTick"},
		Event{Name: "onStop"},
	)
	require.Equal(t, 0, lb.Bus().EventIndex("onTick"))
	require.Equal(t, 1, lb.Bus().EventIndex("onStop"))
	require.Equal(t, -1, lb.Bus().EventIndex("onNope"))
}

func TestLocalBusDelivery(t *testing.T) {
	lb := NewLocalBus("TickBus",
		Event{Name: "onTick", Params: []Parameter{{Name: "dt", Type: TypeFloat64}}},
	)
	h := lb.Bus().CreateHandler()

	var got []any
	var gotName string
	h.InstallHook(0, func(userData any, name string, index int, params []any) {
		require.Equal(t, "tag", userData)
		require.Equal(t, 0, index)
		gotName = name
		got = params
	}, "tag")

	// Not connected yet: nothing fires.
	lb.Signal("onTick", 0.16)
	require.Nil(t, got)

	h.Connect(nil)
	require.True(t, h.IsConnected())
	lb.Signal("onTick", 0.16)
	require.Equal(t, "onTick", gotName)
	require.Equal(t, []any{0.16}, got)

	got = nil
	h.Disconnect()
	require.False(t, h.IsConnected())
	lb.Signal("onTick", 0.32)
	require.Nil(t, got)
}

func TestLocalBusClearHook(t *testing.T) {
	lb := NewLocalBus("TickBus", Event{Name: "onTick"})
	h := lb.Bus().CreateHandler()
	h.Connect(nil)

	fired := 0
	h.InstallHook(0, func(any, string, int, []any) { fired++ }, nil)
	lb.Signal("onTick")
	require.Equal(t, 1, fired)

	h.InstallHook(0, nil, nil)
	lb.Signal("onTick")
	require.Equal(t, 1, fired)
}

func TestLocalBusUnknownEvent(t *testing.T) {
	lb := NewLocalBus("TickBus", Event{Name: "onTick"})
	h := lb.Bus().CreateHandler()
	h.Connect(nil)
	fired := 0
	h.InstallHook(0, func(any, string, int, []any) { fired++ }, nil)

	lb.Signal("onNope")
	require.Zero(t, fired)
}

func TestLocalBusMultipleHandlers(t *testing.T) {
	lb := NewLocalBus("TickBus", Event{Name: "onTick"})
	var calls []string
	for _, tag := range []string{"a", "b"} {
		tag := tag
		h := lb.Bus().CreateHandler()
		h.Connect(nil)
		h.InstallHook(0, func(any, string, int, []any) { calls = append(calls, tag) }, nil)
	}
	lb.Signal("onTick")
	require.Equal(t, []string{"a", "b"}, calls)
}

func TestLocalBusHookSignatureMismatch(t *testing.T) {
	lb := NewLocalBus("TickBus", Event{Name: "onTick"})
	h := lb.Bus().CreateHandler()
	// Out-of-range installs are dropped rather than panicking.
	h.InstallHook(5, func(any, string, int, []any) {}, nil)
	h.InstallHook(-1, func(any, string, int, []any) {}, nil)
	h.Connect(nil)
	lb.Signal("onTick")
}
