package crypto

import "testing"

func TestHash(t *testing.T) {
	if EmptyHash != "DA39A3EE5E6B4B0D3255BFEF95601890AFD80709" {
		t.Fatalf("unexpected empty hash %s", EmptyHash)
	}

	if h := HashString("abc"); h != "A9993E364706816ABA3E25717850C26C9CD0D89D" {
		t.Fatalf("unexpected hash of abc: %s", h)
	}

	if len(SHA256([]byte("abc"))) != 32 {
		t.Fatal("SHA256 should be 32 bytes long")
	}
}
