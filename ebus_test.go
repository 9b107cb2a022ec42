package behaviorjs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEBusHandlerUnknownBusIsNull(t *testing.T) {
	ctx, _ := newTestContext(t)
	v, err := ctx.Eval(`EBusHandler("NoSuchBus") === null`)
	require.NoError(t, err)
	require.True(t, v.Bool())
}

func TestEBusHandlerRequiresName(t *testing.T) {
	ctx, _ := newTestContext(t)
	require.Error(t, ctx.RunScript(`EBusHandler()`))
	require.Error(t, ctx.RunScript(`EBusHandler(42)`))
}

func TestEBusHandlerCarriesBusName(t *testing.T) {
	ctx, _ := newTestContext(t)
	v, err := ctx.Eval(`EBusHandler("NotificationBus").name`)
	require.NoError(t, err)
	require.Equal(t, "NotificationBus", v.String())

	// Handlers come from the factory; bare construction is rejected.
	require.Error(t, ctx.RunScript(`new EBusHandler("NotificationBus")`))
}

func TestEBusConnectLifecycle(t *testing.T) {
	ctx, _ := newTestContext(t)
	require.NoError(t, ctx.RunScript(`var h = EBusHandler("NotificationBus")`))

	v, err := ctx.Eval(`h.isConnected()`)
	require.NoError(t, err)
	require.False(t, v.Bool())

	require.NoError(t, ctx.RunScript(`h.connect()`))
	v, err = ctx.Eval(`h.isConnected()`)
	require.NoError(t, err)
	require.True(t, v.Bool())

	require.NoError(t, ctx.RunScript(`h.disconnect()`))
	v, err = ctx.Eval(`h.isConnected()`)
	require.NoError(t, err)
	require.False(t, v.Bool())
}

func TestEBusEventDelivery(t *testing.T) {
	ctx, bus := newTestContext(t)
	require.NoError(t, ctx.RunScript(`
		var got = -1;
		var h = EBusHandler("NotificationBus");
		h.setEvent("onChanged", function (value) { got = value; });
		h.connect();
	`))

	bus.Signal("onChanged", 4.5)
	require.Equal(t, 4.5, evalNumber(t, ctx, `got`))

	bus.Signal("onChanged", 7.25)
	require.Equal(t, 7.25, evalNumber(t, ctx, `got`))
}

func TestEBusNoDeliveryWhenDisconnected(t *testing.T) {
	ctx, bus := newTestContext(t)
	require.NoError(t, ctx.RunScript(`
		var got = -1;
		var h = EBusHandler("NotificationBus");
		h.setEvent("onChanged", function (value) { got = value; });
	`))

	bus.Signal("onChanged", 4.5)
	require.Equal(t, -1.0, evalNumber(t, ctx, `got`))

	require.NoError(t, ctx.RunScript(`h.connect()`))
	bus.Signal("onChanged", 4.5)
	require.Equal(t, 4.5, evalNumber(t, ctx, `got`))

	require.NoError(t, ctx.RunScript(`h.disconnect()`))
	bus.Signal("onChanged", 9.0)
	require.Equal(t, 4.5, evalNumber(t, ctx, `got`))
}

func TestEBusListenerRemoval(t *testing.T) {
	ctx, bus := newTestContext(t)
	require.NoError(t, ctx.RunScript(`
		var got = -1;
		var h = EBusHandler("NotificationBus");
		h.setEvent("onChanged", function (value) { got = value; });
		h.connect();
	`))
	bus.Signal("onChanged", 1.0)
	require.Equal(t, 1.0, evalNumber(t, ctx, `got`))

	// Passing no listener clears the slot.
	require.NoError(t, ctx.RunScript(`h.setEvent("onChanged")`))
	bus.Signal("onChanged", 2.0)
	require.Equal(t, 1.0, evalNumber(t, ctx, `got`))
}

func TestEBusUnknownEventIgnored(t *testing.T) {
	ctx, bus := newTestContext(t)
	require.NoError(t, ctx.RunScript(`
		var got = -1;
		var h = EBusHandler("NotificationBus");
		h.setEvent("onMissing", function () { got = 0; });
		h.setEvent("onChanged", function (value) { got = value; });
		h.connect();
	`))

	// The bad install must not disturb the good one.
	bus.Signal("onChanged", 3.0)
	require.Equal(t, 3.0, evalNumber(t, ctx, `got`))
}

func TestEBusParameterlessEvent(t *testing.T) {
	ctx, bus := newTestContext(t)
	require.NoError(t, ctx.RunScript(`
		var pings = 0;
		var h = EBusHandler("NotificationBus");
		h.setEvent("onPing", function () { pings++; });
		h.connect();
	`))
	bus.Signal("onPing")
	bus.Signal("onPing")
	require.Equal(t, 2.0, evalNumber(t, ctx, `pings`))
}

func TestEBusBroadcastIsNoop(t *testing.T) {
	ctx, _ := newTestContext(t)
	v, err := ctx.Eval(`EBusHandler("NotificationBus").broadcast("onPing") === undefined`)
	require.NoError(t, err)
	require.True(t, v.Bool())
}

func TestEBusListenerSlotIsPerEvent(t *testing.T) {
	ctx, bus := newTestContext(t)
	// The listener table is keyed by (bus, event), so a second handler on the
	// same event replaces the stored callback; each connected handler still
	// drives one dispatch.
	require.NoError(t, ctx.RunScript(`
		var a = 0, b = 0;
		var h1 = EBusHandler("NotificationBus");
		h1.setEvent("onPing", function () { a++; });
		h1.connect();
		var h2 = EBusHandler("NotificationBus");
		h2.setEvent("onPing", function () { b++; });
		h2.connect();
	`))
	bus.Signal("onPing")
	require.Equal(t, 0.0, evalNumber(t, ctx, `a`))
	require.Equal(t, 2.0, evalNumber(t, ctx, `b`))
}

func TestEventDescriptorCache(t *testing.T) {
	ctx, bus := newTestContext(t)
	d1 := ctx.eventDescriptor(bus.Bus(), "onChanged", 0)
	d2 := ctx.eventDescriptor(bus.Bus(), "onChanged", 0)
	require.Same(t, d1, d2)
	require.Equal(t, "NotificationBus_onChanged", d1.id)

	d3 := ctx.eventDescriptor(bus.Bus(), "onPing", 1)
	require.NotSame(t, d1, d3)
}
