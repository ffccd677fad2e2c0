package common

import (
	"errors"
	"testing"
)

func TestIsHash(t *testing.T) {
	cases := map[string]bool{
		"2E69197FAB029D8669EF85E82457A1587CA0ED9C":  true,
		"2e69197fab029d8669ef85e82457a1587ca0ed9c":  false,
		"2E69197FAB029D8669EF85E82457A1587CA0ED9":   false,
		"2E69197FAB029D8669EF85E82457A1587CA0ED9CA": false,
		"": false,
	}
	for s, want := range cases {
		if got := IsHash(s); got != want {
			t.Fatalf("IsHash(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestIsStore(t *testing.T) {
	err := NewStoreErr("Amendment", KeyNotFound, "ABC")
	if !IsStore(err, KeyNotFound) {
		t.Fatal("expected KeyNotFound")
	}
	if IsStore(err, Empty) {
		t.Fatal("did not expect Empty")
	}
	if IsStore(errors.New("Amendment, ABC, Not Found"), KeyNotFound) {
		t.Fatal("plain errors are not store errors")
	}
	if err.Error() != "Amendment, ABC, Not Found" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
