package notify

import "testing"

func TestBusNotifier_DropsWhenFull(t *testing.T) {
	b := NewBusNotifier(2)

	b.Publish("one")
	b.Publish("two")
	b.Publish("three") // dropped, never blocks

	if got := <-b.Events(); got != "one" {
		t.Errorf("Expected first event, got %q", got)
	}
	if got := <-b.Events(); got != "two" {
		t.Errorf("Expected second event, got %q", got)
	}
	select {
	case got := <-b.Events():
		t.Errorf("Overflow event should be dropped, got %q", got)
	default:
	}
}

func TestForMode(t *testing.T) {
	if _, ok := ForMode("log").(LogNotifier); !ok {
		t.Error("Mode log should yield LogNotifier")
	}
	if _, ok := ForMode("nop").(NopNotifier); !ok {
		t.Error("Mode nop should yield NopNotifier")
	}
	if _, ok := ForMode("").(NopNotifier); !ok {
		t.Error("Unknown mode should default to NopNotifier")
	}
}
