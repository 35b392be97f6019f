package tlsgen

import (
	"crypto/x509"
	"testing"
)

func TestSelfSignedCertParsesAndVerifiesAgainstItself(t *testing.T) {
	cert, err := SelfSignedCert()
	if err != nil {
		t.Fatalf("SelfSignedCert: %v", err)
	}
	if len(cert.Certificate) != 1 {
		t.Fatalf("got %d DER blocks, want 1", len(cert.Certificate))
	}

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		t.Fatalf("ParseCertificate: %v", err)
	}

	pool := x509.NewCertPool()
	pool.AddCert(leaf)
	if _, err := leaf.Verify(x509.VerifyOptions{DNSName: "localhost", Roots: pool}); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestSelfSignedCertIsFreshEachCall(t *testing.T) {
	a, err := SelfSignedCert()
	if err != nil {
		t.Fatalf("SelfSignedCert: %v", err)
	}
	b, err := SelfSignedCert()
	if err != nil {
		t.Fatalf("SelfSignedCert: %v", err)
	}
	if string(a.Certificate[0]) == string(b.Certificate[0]) {
		t.Fatal("expected distinct serial numbers across calls")
	}
}
