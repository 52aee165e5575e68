package util

import "testing"

func TestChecksum_Stable(t *testing.T) {
	a := Checksum([]byte("fy2013 loss run"))
	b := Checksum([]byte("fy2013 loss run"))
	if a != b {
		t.Errorf("expected identical digests, got %s and %s", a, b)
	}
	if len(a) != 16 {
		t.Errorf("expected 16 hex digits, got %d (%s)", len(a), a)
	}
}

func TestChecksum_DistinguishesContent(t *testing.T) {
	a := Checksum([]byte("fy2013 loss run"))
	b := Checksum([]byte("fy2014 loss run"))
	if a == b {
		t.Errorf("expected different digests for different content, both %s", a)
	}
}

func TestChecksum_EmptyInput(t *testing.T) {
	if got := Checksum(nil); len(got) != 16 {
		t.Errorf("expected 16 hex digits for empty input, got %q", got)
	}
}
