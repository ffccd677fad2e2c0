package keys

import (
	"encoding/hex"
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ucoin-io/ucoind/src/common"
)

func TestSimpleKeyfile(t *testing.T) {
	dir := t.TempDir()

	simpleKeyfile := NewSimpleKeyfile(filepath.Join(dir, "priv_key"))

	// Try a read, should get nothing
	key, err := simpleKeyfile.ReadKey()
	if err == nil {
		t.Fatalf("ReadKey should generate an error")
	}
	if key != nil {
		t.Fatalf("key is not nil")
	}

	key, _ = GenerateECDSAKey()

	if err := simpleKeyfile.WriteKey(key); err != nil {
		t.Fatalf("err: %v", err)
	}

	nKey, err := simpleKeyfile.ReadKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if !reflect.DeepEqual(nKey.D, key.D) || Fingerprint(&nKey.PublicKey) != Fingerprint(&key.PublicKey) {
		t.Fatalf("Keys do not match")
	}
}

func TestFilePermissions(t *testing.T) {
	dir := t.TempDir()

	key, _ := GenerateECDSAKey()
	rawKey := hex.EncodeToString(DumpPrivateKey(key))

	badKeyPath := filepath.Join(dir, "priv_key_bad")

	shouldErr := []os.FileMode{0777, 0766, 0744, 0677, 0666, 0644, 0477, 0466, 0444}

	for _, fm := range shouldErr {
		os.Remove(badKeyPath)
		ioutil.WriteFile(badKeyPath, []byte(rawKey), fm)
		os.Chmod(badKeyPath, fm)

		if _, err := NewSimpleKeyfile(badKeyPath).ReadKey(); err == nil {
			t.Fatalf("%o || keyfile should return permissions error", fm)
		}
	}

	goodKeyPath := filepath.Join(dir, "priv_key_good")

	shouldNotErr := []os.FileMode{0700, 0600, 0500, 0400}

	for _, fm := range shouldNotErr {
		os.Remove(goodKeyPath)
		ioutil.WriteFile(goodKeyPath, []byte(rawKey), fm)
		os.Chmod(goodKeyPath, fm)

		if _, err := NewSimpleKeyfile(goodKeyPath).ReadKey(); err != nil {
			t.Fatalf("%o || keyfile should not return error. Got %v", fm, err)
		}
	}
}

func TestSignPayload(t *testing.T) {
	privKey, _ := GenerateECDSAKey()

	payload := []byte("Version: 1\nType: Membership\n")

	sig, err := SignPayload(privKey, payload)
	if err != nil {
		t.Fatal(err)
	}

	if !VerifyPayload(&privKey.PublicKey, payload, sig) {
		t.Fatal("signature should verify")
	}

	if VerifyPayload(&privKey.PublicKey, []byte("Version: 2\n"), sig) {
		t.Fatal("signature should not verify a different payload")
	}

	if VerifyPayload(&privKey.PublicKey, payload, "not a signature") {
		t.Fatal("garbage should not verify")
	}
}

func TestPublicKeyHexAndFingerprint(t *testing.T) {
	privKey, _ := GenerateECDSAKey()

	pubHex := PublicKeyHex(&privKey.PublicKey)

	pub, err := ParsePublicKeyHex(pubHex)
	if err != nil {
		t.Fatal(err)
	}

	fpr := Fingerprint(pub)
	if !common.IsHash(fpr) {
		t.Fatalf("fingerprint %s should be a 40 char upper-case hash", fpr)
	}

	if fpr != Fingerprint(&privKey.PublicKey) {
		t.Fatal("fingerprints should match")
	}

	if _, err := ParsePublicKeyHex("0X00"); err == nil {
		t.Fatal("expected error parsing invalid key")
	}
}
