package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/helioslabs/userhub/domain"
)

// Header names used by the identity provider's webhook transport.
const (
	HeaderID        = "svix-id"
	HeaderTimestamp = "svix-timestamp"
	HeaderSignature = "svix-signature"
)

// Tolerance window applied to the timestamp header. Requests older or newer
// than this are rejected as replays.
const timestampTolerance = 5 * time.Minute

// Verification failures. All of them surface as 400 at the ingress; a new
// signed payload is required, retrying the same one cannot help.
var (
	ErrMissingHeaders    = fmt.Errorf("webhook: missing signature headers")
	ErrInvalidTimestamp  = fmt.Errorf("webhook: invalid or stale timestamp")
	ErrSignatureMismatch = fmt.Errorf("webhook: signature mismatch")
)

// Verifier checks the shared-secret signature on inbound webhook requests.
// The signed content is `id.timestamp.body`, keyed with HMAC-SHA256; the
// signature header carries a space-separated list of versioned signatures.
type Verifier struct {
	key []byte
	now func() time.Time
}

// NewVerifier builds a verifier from the configured signing secret. The
// provider hands secrets out with a whsec_ prefix over base64 key material.
func NewVerifier(secret string) (*Verifier, error) {
	secret = strings.TrimPrefix(secret, "whsec_")
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("webhook: decoding signing secret: %w", err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("webhook: signing secret is empty")
	}
	return &Verifier{key: key, now: time.Now}, nil
}

// Verify checks headers and signature against the raw body.
func (v *Verifier) Verify(headers http.Header, body []byte) error {
	id := headers.Get(HeaderID)
	timestamp := headers.Get(HeaderTimestamp)
	signatures := headers.Get(HeaderSignature)
	if id == "" || timestamp == "" || signatures == "" {
		return ErrMissingHeaders
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidTimestamp
	}
	age := v.now().UTC().Sub(time.Unix(ts, 0))
	if age > timestampTolerance || age < -timestampTolerance {
		return ErrInvalidTimestamp
	}

	expected := v.Sign(id, timestamp, body)
	for _, entry := range strings.Fields(signatures) {
		version, sig, found := strings.Cut(entry, ",")
		if !found || version != "v1" {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(sig), []byte(expected)) == 1 {
			return nil
		}
	}
	return ErrSignatureMismatch
}

// Sign computes the v1 signature over `id.timestamp.body`.
func (v *Verifier) Sign(id, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, v.key)
	fmt.Fprintf(mac, "%s.%s.", id, timestamp)
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyAndParse verifies the request signature and decodes the body into its
// typed event. Decode failures are client errors, not server faults.
func (v *Verifier) VerifyAndParse(headers http.Header, body []byte) (domain.Event, error) {
	if err := v.Verify(headers, body); err != nil {
		return nil, err
	}
	return domain.ParseEvent(body)
}
