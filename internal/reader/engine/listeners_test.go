package engine

import "testing"

func TestListenersOrderAndUnsubscribe(t *testing.T) {
	var l Listeners[int]
	var got []string

	unsubA := l.Add(func(v int) { got = append(got, "a") })
	var unsubB Unsubscribe
	unsubB = l.Add(func(v int) {
		got = append(got, "b")
		unsubB()
	})
	l.Add(func(v int) { got = append(got, "c") })

	l.Emit(1)
	l.Emit(2)
	unsubA()
	unsubA()
	l.Emit(3)

	want := []string{"a", "b", "c", "a", "c", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if l.Len() != 1 {
		t.Errorf("Len = %d, want 1", l.Len())
	}
}
