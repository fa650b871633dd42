package core

import "testing"

// MockClock advances by step on every sample.
type MockClock struct {
	now  uint32
	step uint32
}

func (c *MockClock) Now() uint32 {
	c.now += c.step
	return c.now
}

func (c *MockClock) ElapsedSince(start uint32) uint32 {
	return c.Now() - start
}

func TestPollUntilSatisfied(t *testing.T) {
	clk := &MockClock{step: 10}
	polls := 0
	ok, elapsed := PollUntil(clk, 1000, func() bool {
		polls++
		return polls == 5
	})
	if !ok {
		t.Fatal("Expected poll to succeed")
	}
	if elapsed > 1000 {
		t.Errorf("Expected elapsed within budget, got %d", elapsed)
	}
}

func TestPollUntilTimeout(t *testing.T) {
	clk := &MockClock{step: 10}
	ok, elapsed := PollUntil(clk, 1000, func() bool { return false })
	if ok {
		t.Fatal("Expected poll to time out")
	}
	if elapsed <= 1000 {
		t.Errorf("Expected elapsed beyond 1000, got %d", elapsed)
	}
	if elapsed > 1010 {
		t.Errorf("Expected timeout within one step of the budget, got %d", elapsed)
	}
}

func TestPollUntilChecksFirst(t *testing.T) {
	clk := &MockClock{step: 5000}
	ok, _ := PollUntil(clk, 1, func() bool { return true })
	if !ok {
		t.Error("Expected an already-true condition to succeed even with a tiny budget")
	}
}

func TestPollUntilAcrossWrap(t *testing.T) {
	clk := &MockClock{now: 0xFFFFFF00, step: 16}
	ok, elapsed := PollUntil(clk, 1000, func() bool { return false })
	if ok {
		t.Fatal("Expected timeout")
	}
	if elapsed <= 1000 || elapsed > 1016 {
		t.Errorf("Expected elapsed just past 1000 across the wrap, got %d", elapsed)
	}
}

func TestDelay(t *testing.T) {
	clk := &MockClock{step: 7}
	start := clk.now
	Delay(clk, 5000)
	if clk.now-start < 5000 {
		t.Errorf("Expected at least 5000 us to pass, got %d", clk.now-start)
	}
}
