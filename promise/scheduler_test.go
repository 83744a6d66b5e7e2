package promise

import (
	"errors"
	"fmt"
	"testing"

	"github.com/momentics/hioload-amqp/api"
)

func TestDoneMakesReady(t *testing.T) {
	s := NewScheduler()
	id := s.Create()
	if s.IsReady(id) {
		t.Fatal("pending promise reported ready")
	}
	if err := s.Done(id, Result{Value: "ok"}); err != nil {
		t.Fatal(err)
	}
	if !s.IsReady(id) {
		t.Fatal("completed promise not ready")
	}
	v, err := s.RunCallback(id, true)
	if err != nil {
		t.Fatal(err)
	}
	if v != "ok" {
		t.Fatalf("value = %v", v)
	}
}

func TestDoneTwiceIsIllegal(t *testing.T) {
	s := NewScheduler()
	id := s.Create()
	if err := s.Done(id, Result{}); err != nil {
		t.Fatal(err)
	}
	if err := s.Done(id, Result{}); !errors.Is(err, api.ErrPromiseDone) {
		t.Fatalf("err = %v", err)
	}
}

func TestExactlyOnceDelivery(t *testing.T) {
	s := NewScheduler()
	id := s.Create()
	_ = s.Done(id, Result{Value: 1})
	// Readiness may be observed many times before delivery.
	for i := 0; i < 3; i++ {
		if !s.IsReady(id) {
			t.Fatal("not ready")
		}
	}
	if _, err := s.RunCallback(id, true); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RunCallback(id, true); err == nil {
		t.Fatal("second delivery succeeded")
	}
	if s.IsReady(id) {
		t.Fatal("delivered promise still ready")
	}
}

func TestCallbackInvokedOncePerPromise(t *testing.T) {
	s := NewScheduler()
	id := s.Create()
	calls := 0
	_ = s.SetCallback(id, func(got ID, r Result) {
		calls++
		if got != id || r.Value != "v" {
			t.Errorf("callback got id=%d r=%+v", got, r)
		}
	})
	_ = s.Done(id, Result{Value: "v"})
	if calls != 0 {
		t.Fatal("callback ran before a scheduler pass")
	}
	if _, err := s.RunCallback(id, false); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestSetCallbackOnReadyIsNotInline(t *testing.T) {
	s := NewScheduler()
	id := s.Create()
	_ = s.Done(id, Result{Value: "v"})
	ran := false
	_ = s.SetCallback(id, func(ID, Result) { ran = true })
	if ran {
		t.Fatal("callback ran inline from SetCallback")
	}
	if !s.IsReady(id) {
		t.Fatal("promise lost readiness")
	}
}

func TestRaiseErrors(t *testing.T) {
	s := NewScheduler()
	want := fmt.Errorf("broker rejected")
	id := s.Create()
	_ = s.Done(id, Result{Err: want})
	if _, err := s.RunCallback(id, true); !errors.Is(err, want) {
		t.Fatalf("err = %v", err)
	}

	id2 := s.Create()
	_ = s.Done(id2, Result{Err: want})
	var delivered Result
	_ = s.SetCallback(id2, func(_ ID, r Result) { delivered = r })
	if _, err := s.RunCallback(id2, false); err != nil {
		t.Fatalf("swallowing delivery errored: %v", err)
	}
	if !errors.Is(delivered.Err, want) {
		t.Fatalf("callback result = %+v", delivered)
	}
}

func TestHoldDefersReadiness(t *testing.T) {
	s := NewScheduler()
	id := s.Create()
	if err := s.Hold(id); err != nil {
		t.Fatal(err)
	}
	_ = s.Done(id, Result{Value: "v"})
	if s.IsReady(id) {
		t.Fatal("held promise visible in ready set")
	}
	if _, ok := s.NextReady(); ok {
		t.Fatal("held promise surfaced by NextReady")
	}
	if err := s.Release(id); err != nil {
		t.Fatal(err)
	}
	if !s.IsReady(id) {
		t.Fatal("released promise not ready")
	}
}

func TestReleaseWithoutHoldIsIllegal(t *testing.T) {
	s := NewScheduler()
	id := s.Create()
	if err := s.Release(id); !errors.Is(err, api.ErrPromiseNotHeld) {
		t.Fatalf("err = %v", err)
	}
}

func TestBroadcastSkipsHeld(t *testing.T) {
	s := NewScheduler()
	plain := s.Create()
	held := s.Create()
	_ = s.Hold(held)
	failure := fmt.Errorf("connection broken")
	s.Broadcast(Result{Err: failure})
	if !s.IsReady(plain) {
		t.Fatal("unheld promise not completed by broadcast")
	}
	if s.IsReady(held) {
		t.Fatal("held promise completed by broadcast")
	}
	// The held promise is still pending and completable by its owner.
	_ = s.Release(held)
	if err := s.Done(held, Result{Value: "late"}); err != nil {
		t.Fatal(err)
	}
}

func TestNextReadyFIFOAndStaleEntries(t *testing.T) {
	s := NewScheduler()
	a := s.Create()
	b := s.Create()
	_ = s.Done(a, Result{})
	_ = s.Done(b, Result{})
	// Consume b out of order, as Wait would.
	if _, err := s.RunCallback(b, true); err != nil {
		t.Fatal(err)
	}
	id, ok := s.NextReady()
	if !ok || id != a {
		t.Fatalf("NextReady = %d, %v", id, ok)
	}
	if _, err := s.RunCallback(a, true); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.NextReady(); ok {
		t.Fatal("ready set should be drained")
	}
}
