package cycler

import "testing"

func TestActionFiresOnPeriod(t *testing.T) {
	var fired []uint
	a := NewAction(4, 0, func() {})
	// wrap callback to capture the frame it fired on
	frame := uint(0)
	a.Callback = func() { fired = append(fired, frame) }
	for i := 0; i < 16; i++ {
		a.Advance()
		frame++
	}
	want := []uint{0, 4, 8, 12}
	if len(fired) != len(want) {
		t.Fatalf("fired = %v, want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Fatalf("fired = %v, want %v", fired, want)
		}
	}
}

func TestActionOffset(t *testing.T) {
	count := 0
	a := NewAction(3, 1, func() { count++ })
	for i := 0; i < 10; i++ {
		a.Advance()
	}
	// fires at frames 1,4,7 -> 3 times
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}
}

func TestActionNeverCompletes(t *testing.T) {
	a := NewAction(1, 0, nil)
	for i := 0; i < 1000; i++ {
		a.Advance()
	}
	if a.Complete() {
		t.Fatal("Action should never complete")
	}
}

func TestRepeatCompletesAfterCount(t *testing.T) {
	child := NewAction(2, 0, nil)
	// An Action child never completes, so the Repeat wraps a fake
	// bounded cycler instead.
	r := NewRepeat(3, &fakeBounded{period: 2})
	for !r.Complete() {
		r.Advance()
		if r.Index() > 10 {
			t.Fatal("repeat never completed")
		}
	}
	if r.Index() != 3 {
		t.Fatalf("repeat done = %d, want 3", r.Index())
	}
	_ = child
}

// fakeBounded completes after `period` advances.
type fakeBounded struct {
	period uint
	n      uint
}

func (f *fakeBounded) Advance()        { f.n++ }
func (f *fakeBounded) Complete() bool  { return f.n >= f.period }
func (f *fakeBounded) Reset()          { f.n = 0 }
func (f *fakeBounded) Length() uint    { return f.period }
func (f *fakeBounded) Progress() float64 {
	if f.period == 0 {
		return 1
	}
	return float64(f.n) / float64(f.period)
}
func (f *fakeBounded) Index() uint { return f.n }

func TestSequenceAdvancesInOrder(t *testing.T) {
	var order []int
	c1 := &fakeBounded{period: 2}
	c2 := &fakeBounded{period: 2}
	seq := NewSequence(c1, c2)
	for i := 0; i < 4; i++ {
		seq.Advance()
		order = append(order, int(seq.Index()))
	}
	if !seq.Complete() {
		t.Fatal("sequence should be complete after 4 advances of 2+2")
	}
	want := []int{0, 1, 1, 2}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("index order = %v, want %v", order, want)
		}
	}
}

func TestParallelCompletesWhenAllComplete(t *testing.T) {
	c1 := &fakeBounded{period: 2}
	c2 := &fakeBounded{period: 5}
	p := NewParallel(c1, c2)
	for i := 0; i < 5; i++ {
		p.Advance()
	}
	if !p.Complete() {
		t.Fatal("parallel should complete once its longest child completes")
	}
	if !c1.Complete() || c1.n != 2 {
		t.Fatal("shorter child should have completed and stopped advancing")
	}
}

// TestDeterminism: advancing N times
// produces the same callback sequence as N/2 then N/2 advances.
func TestDeterminism(t *testing.T) {
	runN := func(n int) []uint {
		var log []uint
		frame := uint(0)
		a := NewAction(3, 0, nil)
		a.Callback = func() { log = append(log, frame) }
		for i := 0; i < n; i++ {
			a.Advance()
			frame++
		}
		return log
	}

	full := runN(20)

	var split []uint
	frame := uint(0)
	a := NewAction(3, 0, nil)
	a.Callback = func() { split = append(split, frame) }
	for i := 0; i < 10; i++ {
		a.Advance()
		frame++
	}
	for i := 0; i < 10; i++ {
		a.Advance()
		frame++
	}

	if len(full) != len(split) {
		t.Fatalf("full=%v split=%v", full, split)
	}
	for i := range full {
		if full[i] != split[i] {
			t.Fatalf("full=%v split=%v", full, split)
		}
	}
}
