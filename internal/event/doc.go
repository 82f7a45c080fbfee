// Package event provides the workbench event bus.
//
// The bus is a decoupled one-to-many notification channel shared by the
// kernel, the host and every plugin. Listeners subscribe to an event name and
// receive the payload passed to Emit.
//
//	           ┌──────────────────────────────┐
//	 Emit ───▶ │            Bus               │
//	           │  name ─▶ [listeners]         │
//	           │  name ─▶ [once listeners]    │
//	           └──────────────────────────────┘
//	                 │ snapshot, in order
//	       ┌─────────┼─────────┐
//	       ▼         ▼         ▼
//	   listener  listener  once listener
//
// # Delivery
//
// Emit is synchronous. It takes a snapshot of the listeners registered for the
// event (normal listeners first, then once listeners) before invoking any of
// them, so a listener added while an event is being dispatched is not called
// for that same Emit. Once listeners are cleared from the bus before dispatch
// and run at most one time.
//
// A listener that panics is recovered and logged; the remaining listeners
// still run and the panic never reaches the emitter. One misbehaving plugin
// cannot break delivery to the others.
//
// # Subscriptions
//
// On and Once return a *Subscription. Disposing it (or passing it to Off)
// removes only that listener. Removing the last listener of an event drops the
// event's bucket entirely.
//
//	sub := bus.On("document.saved", func(data any) {
//	    log.Println("saved", data)
//	})
//	defer sub.Dispose()
//
// Subscribe offers a typed variant:
//
//	event.Subscribe(bus, "document.saved", func(e SavedEvent) { ... })
package event
