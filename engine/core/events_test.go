package core

import "testing"

func TestEventBusFireStopsWhenHandled(t *testing.T) {
	bus := NewEventBus()
	calls := 0
	first, second := new(int), new(int)
	bus.Register(EVENT_CODE_DEVICE_LOST, first, func(SystemEventCode, interface{}, interface{}, EventContext) bool {
		calls++
		return true
	})
	bus.Register(EVENT_CODE_DEVICE_LOST, second, func(SystemEventCode, interface{}, interface{}, EventContext) bool {
		calls++
		return false
	})
	if bus.Register(EVENT_CODE_DEVICE_LOST, first, nil) {
		t.Fatal("duplicate listener registered")
	}
	if !bus.Fire(EVENT_CODE_DEVICE_LOST, nil, EventContext{DeviceID: "x"}) {
		t.Fatal("event not handled")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if !bus.Unregister(EVENT_CODE_DEVICE_LOST, first) {
		t.Fatal("unregister failed")
	}
	if bus.Fire(EVENT_CODE_DEVICE_LOST, nil, EventContext{}) {
		t.Fatal("second listener returns false")
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}
