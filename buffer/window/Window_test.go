package window_test

import (
	"sync"
	"testing"

	"sfneuman.com/turnrl/buffer/window"
	"sfneuman.com/turnrl/turn"
)

func TestAppendCapacityExceeded(t *testing.T) {
	b, err := window.New(1, 2)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := b.Append(turn.Record{InstanceID: 0, Step: i}); err != nil {
			t.Fatalf("append %v: %v", i, err)
		}
	}

	err = b.Append(turn.Record{InstanceID: 0, Step: 2})
	if err == nil {
		t.Fatal("append: expected error past turn budget")
	}
	if !window.IsCapacityExceeded(err) {
		t.Errorf("append: expected capacity error, got %v", err)
	}
}

func TestAppendStepOrder(t *testing.T) {
	b, err := window.New(1, 10)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if err := b.Append(turn.Record{InstanceID: 0, Step: 0}); err != nil {
		t.Fatalf("append: %v", err)
	}

	// Skipping a step is rejected
	err = b.Append(turn.Record{InstanceID: 0, Step: 2})
	if !window.IsStepOrder(err) {
		t.Errorf("append: expected step order error, got %v", err)
	}

	// A new episode restarts at step 0 after a done turn
	if err := b.Append(turn.Record{InstanceID: 0, Step: 1,
		Done: true}); err != nil {
		t.Fatalf("append: %v", err)
	}
	err = b.Append(turn.Record{InstanceID: 0, Step: 2})
	if !window.IsStepOrder(err) {
		t.Errorf("append: expected step order error after episode end, "+
			"got %v", err)
	}
	if err := b.Append(turn.Record{InstanceID: 0, Step: 0}); err != nil {
		t.Errorf("append: fresh episode should restart at step 0: %v", err)
	}
}

func TestAppendUnknownInstance(t *testing.T) {
	b, err := window.New(2, 4)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if err := b.Append(turn.Record{InstanceID: 2, Step: 0}); err == nil {
		t.Error("append: expected error for unallocated instance slot")
	}
}

func TestConcurrentAppend(t *testing.T) {
	const instances = 8
	const turnsPer = 25

	b, err := window.New(instances, instances*turnsPer)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	var wait sync.WaitGroup
	for i := 0; i < instances; i++ {
		wait.Add(1)
		go func(id int) {
			defer wait.Done()
			for s := 0; s < turnsPer; s++ {
				err := b.Append(turn.Record{
					InstanceID: id,
					Step:       s,
					Reward:     float64(id),
				})
				if err != nil {
					t.Errorf("append instance %v step %v: %v", id, s, err)
					return
				}
			}
		}(i)
	}
	wait.Wait()

	if b.Len() != instances*turnsPer {
		t.Fatalf("len: \n\twant(%v)\n\thave(%v)", instances*turnsPer,
			b.Len())
	}

	w, err := b.Drain()
	if err != nil {
		t.Fatalf("drain: %v", err)
	}

	// No lost or duplicated records per (instance, step)
	for _, id := range w.Instances() {
		turns := w.Turns(id)
		if len(turns) != turnsPer {
			t.Errorf("instance %v: \n\twant(%v turns)\n\thave(%v)", id,
				turnsPer, len(turns))
		}
		for s, rec := range turns {
			if rec.Step != s || rec.InstanceID != id {
				t.Errorf("instance %v slot %v holds record (%v, %v)", id, s,
					rec.InstanceID, rec.Step)
			}
		}
	}
}

func TestDrainShortWindow(t *testing.T) {
	b, err := window.New(1, 3)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if err := b.Append(turn.Record{InstanceID: 0, Step: 0}); err != nil {
		t.Fatalf("append: %v", err)
	}

	if _, err := b.Drain(); !window.IsShortWindow(err) {
		t.Errorf("drain: expected short window error, got %v", err)
	}
}

func TestDrainClearsBuffer(t *testing.T) {
	b, err := window.New(1, 1)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if err := b.Append(turn.Record{InstanceID: 0, Step: 0}); err != nil {
		t.Fatalf("append: %v", err)
	}
	w, err := b.Drain()
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if w.Len() != 1 {
		t.Errorf("window len: \n\twant(1)\n\thave(%v)", w.Len())
	}

	if b.Len() != 0 {
		t.Errorf("buffer should be empty after drain, has %v turns",
			b.Len())
	}
	if err := b.Append(turn.Record{InstanceID: 0, Step: 1}); err != nil {
		t.Errorf("append after drain: %v", err)
	}
}

func TestDiscard(t *testing.T) {
	b, err := window.New(1, 2)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if err := b.Append(turn.Record{InstanceID: 0, Step: 0}); err != nil {
		t.Fatalf("append: %v", err)
	}
	b.Discard()

	if b.Len() != 0 {
		t.Errorf("buffer should be empty after discard, has %v turns",
			b.Len())
	}
}
