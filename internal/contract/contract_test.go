package contract

import "testing"

func TestAssert_PassesThroughOnTrue(t *testing.T) {
	Assert(true, "should never fire")
}

func TestAssert_PanicsOnFalse(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected Assert(false, ...) to panic")
		}
	}()
	Assert(false, "boom %d", 42)
}
