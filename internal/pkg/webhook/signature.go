package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	HeaderMercadoPagoSignature = "x-signature"
	HeaderMercadoPagoRequestID = "x-request-id"
	HeaderAsaasAccessToken     = "asaas-access-token"
)

// Verifier authenticates the sender of a delivery before any ledger work.
type Verifier interface {
	// Enabled reports whether a secret is configured. Disabled verifiers
	// accept every delivery.
	Enabled() bool
	Verify(d *Delivery, ev *Event) error
}

// MercadoPagoVerifier checks the x-signature HMAC-SHA256 manifest signature.
type MercadoPagoVerifier struct {
	Secret string
}

func (v MercadoPagoVerifier) Enabled() bool {
	return strings.TrimSpace(v.Secret) != ""
}

func (v MercadoPagoVerifier) Verify(d *Delivery, ev *Event) error {
	if !v.Enabled() {
		return nil
	}
	dataID := strings.TrimSpace(d.Query.Get("data.id"))
	if dataID == "" && ev != nil {
		dataID = ev.PaymentID
	}
	ok := VerifyMercadoPagoSignature(
		d.Header.Get(HeaderMercadoPagoSignature),
		d.Header.Get(HeaderMercadoPagoRequestID),
		dataID,
		v.Secret,
	)
	if !ok {
		return fmt.Errorf("%w: mercadopago signature mismatch", ErrInvalidSignature)
	}
	return nil
}

// AsaasVerifier compares the static asaas-access-token header.
type AsaasVerifier struct {
	Token string
}

func (v AsaasVerifier) Enabled() bool {
	return strings.TrimSpace(v.Token) != ""
}

func (v AsaasVerifier) Verify(d *Delivery, _ *Event) error {
	if !v.Enabled() {
		return nil
	}
	if !VerifyAsaasToken(d.Header.Get(HeaderAsaasAccessToken), v.Token) {
		return fmt.Errorf("%w: asaas access token mismatch", ErrInvalidSignature)
	}
	return nil
}

// VerifyMercadoPagoSignature validates a "ts=<unix>,v1=<hex>" header against
// the manifest built from the payment id, request id and timestamp.
func VerifyMercadoPagoSignature(signatureHeader, requestID, dataID, secret string) bool {
	secret = strings.TrimSpace(secret)
	ts, v1 := parseMercadoPagoSignature(signatureHeader)
	if secret == "" || ts == "" || v1 == "" {
		return false
	}

	decodedSig, err := hex.DecodeString(strings.ToLower(v1))
	if err != nil {
		return false
	}

	manifest := MercadoPagoManifest(dataID, requestID, ts)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	return hmac.Equal(mac.Sum(nil), decodedSig)
}

// MercadoPagoManifest builds the signed template. Segments whose value is
// absent are left out.
func MercadoPagoManifest(dataID, requestID, ts string) string {
	var b strings.Builder
	if id := strings.TrimSpace(dataID); id != "" {
		// Alphanumeric ids are signed in lower case.
		b.WriteString("id:" + strings.ToLower(id) + ";")
	}
	if rid := strings.TrimSpace(requestID); rid != "" {
		b.WriteString("request-id:" + rid + ";")
	}
	b.WriteString("ts:" + strings.TrimSpace(ts) + ";")
	return b.String()
}

func parseMercadoPagoSignature(header string) (ts, v1 string) {
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(k) {
		case "ts":
			ts = strings.TrimSpace(v)
		case "v1":
			v1 = strings.TrimSpace(v)
		}
	}
	return ts, v1
}

// VerifyAsaasToken compares the header token in constant time.
func VerifyAsaasToken(headerToken, configured string) bool {
	got := strings.TrimSpace(headerToken)
	want := strings.TrimSpace(configured)
	if got == "" || want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
