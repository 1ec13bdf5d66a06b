package activitypub

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/deemkeen/smilodon/util"
)

// generateTestKey generates an RSA key for testing
func generateTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}
	return privateKey
}

// privateKeyToPEM converts private key to PEM string
func privateKeyToPEM(key *rsa.PrivateKey) string {
	keyBytes := x509.MarshalPKCS1PrivateKey(key)
	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: keyBytes,
	})
	return string(keyPEM)
}

// calculateDigest calculates SHA-256 digest for request body
func calculateDigest(body []byte) string {
	hash := sha256.Sum256(body)
	return "SHA-256=" + base64.StdEncoding.EncodeToString(hash[:])
}

// signableRequest builds a POST request carrying all headers SignRequest
// covers
func signableRequest(t *testing.T, target string, body []byte) *http.Request {
	t.Helper()
	req, err := http.NewRequest("POST", target, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	req.Header.Set("Host", req.URL.Host)
	req.Header.Set("Digest", calculateDigest(body))
	return req
}

func TestParsePrivateKey(t *testing.T) {
	privateKey := generateTestKey(t)
	pemString := privateKeyToPEM(privateKey)

	parsed, err := ParsePrivateKey(pemString)
	if err != nil {
		t.Fatalf("ParsePrivateKey failed: %v", err)
	}

	if parsed == nil {
		t.Fatal("ParsePrivateKey returned nil")
	}

	if parsed.N.Cmp(privateKey.N) != 0 {
		t.Error("Parsed key doesn't match original")
	}
}

func TestParsePrivateKeyInvalidPEM(t *testing.T) {
	_, err := ParsePrivateKey("not a valid PEM")
	if err == nil {
		t.Error("Expected error for invalid PEM")
	}
}

func TestParsePrivateKeyEmptyString(t *testing.T) {
	_, err := ParsePrivateKey("")
	if err == nil {
		t.Error("Expected error for empty string")
	}
}

func TestParsePrivateKeyFromGeneratedKeypair(t *testing.T) {
	// The delivery worker signs with keys produced at actor creation time,
	// so the two formats have to agree.
	pair := util.GeneratePemKeypair()

	parsed, err := ParsePrivateKey(pair.Private)
	if err != nil {
		t.Fatalf("ParsePrivateKey failed on generated keypair: %v", err)
	}
	if parsed == nil {
		t.Fatal("ParsePrivateKey returned nil")
	}
}

func TestSignRequestAddsSignatureHeader(t *testing.T) {
	privateKey := generateTestKey(t)
	req := signableRequest(t, "https://relay.example/inbox", []byte(`{"type":"Follow"}`))

	keyId := "https://mod.example/actor#main-key"
	if err := SignRequest(req, privateKey, keyId); err != nil {
		t.Fatalf("SignRequest failed: %v", err)
	}

	sig := req.Header.Get("Signature")
	if sig == "" {
		t.Fatal("Expected Signature header to be set")
	}
	if !strings.Contains(sig, `keyId="https://mod.example/actor#main-key"`) {
		t.Errorf("Signature header missing keyId: %s", sig)
	}
	if !strings.Contains(sig, "(request-target) host date digest") {
		t.Errorf("Signature header missing covered headers: %s", sig)
	}
	if !strings.Contains(sig, `signature="`) {
		t.Errorf("Signature header missing signature value: %s", sig)
	}
}

func TestSignRequestPreservesDigest(t *testing.T) {
	privateKey := generateTestKey(t)
	body := []byte(`{"type":"Create"}`)
	req := signableRequest(t, "https://relay.example/inbox", body)

	want := req.Header.Get("Digest")
	if err := SignRequest(req, privateKey, "https://mod.example/actor#main-key"); err != nil {
		t.Fatalf("SignRequest failed: %v", err)
	}

	if got := req.Header.Get("Digest"); got != want {
		t.Errorf("Expected Digest header to stay %q, got %q", want, got)
	}
}

func TestSignRequestDifferentKeysDifferentSignatures(t *testing.T) {
	body := []byte(`{"type":"Create"}`)
	keyId := "https://mod.example/actor#main-key"

	req1 := signableRequest(t, "https://relay.example/inbox", body)
	req2 := signableRequest(t, "https://relay.example/inbox", body)
	req2.Header.Set("Date", req1.Header.Get("Date"))

	if err := SignRequest(req1, generateTestKey(t), keyId); err != nil {
		t.Fatalf("SignRequest failed: %v", err)
	}
	if err := SignRequest(req2, generateTestKey(t), keyId); err != nil {
		t.Fatalf("SignRequest failed: %v", err)
	}

	if req1.Header.Get("Signature") == req2.Header.Get("Signature") {
		t.Error("Expected different keys to produce different signatures")
	}
}
