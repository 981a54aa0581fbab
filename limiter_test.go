package petalpress

import (
	"testing"
	"time"
)

func TestLoginLimiterAllows(t *testing.T) {
	l := NewLoginLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("attempt %d blocked under the limit", i+1)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Fatal("attempt over the limit allowed")
	}
}

func TestLoginLimiterPerIP(t *testing.T) {
	l := NewLoginLimiter(1, time.Minute)

	if !l.Allow("10.0.0.1") {
		t.Fatal("first IP blocked")
	}
	if !l.Allow("10.0.0.2") {
		t.Fatal("second IP affected by first IP's attempts")
	}
	if l.Allow("10.0.0.1") {
		t.Fatal("first IP allowed over its limit")
	}
}

func TestLoginLimiterWindowExpiry(t *testing.T) {
	l := NewLoginLimiter(1, 20*time.Millisecond)

	if !l.Allow("10.0.0.1") {
		t.Fatal("first attempt blocked")
	}
	if l.Allow("10.0.0.1") {
		t.Fatal("second attempt allowed inside the window")
	}

	time.Sleep(40 * time.Millisecond)
	if !l.Allow("10.0.0.1") {
		t.Fatal("attempt blocked after the window expired")
	}
}
