package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Header names set on signed requests.
const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderTimestamp = "X-Webhook-Timestamp"
	HeaderID        = "X-Webhook-ID"
)

// Sign returns the hex HMAC-SHA256 of "timestamp.payload" under secret.
func Sign(secret string, timestamp int64, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(strconv.FormatInt(timestamp, 10)))
	h.Write([]byte{'.'})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify checks the signature headers of a received webhook.
// A positive maxAge rejects timestamps older than maxAge or more than a
// minute in the future.
func Verify(secret string, payload []byte, header http.Header, maxAge time.Duration, now time.Time) error {
	if secret == "" {
		return ErrMissingSecret
	}
	sig := header.Get(HeaderSignature)
	if sig == "" {
		return fmt.Errorf("%w: missing %s", ErrInvalidSignature, HeaderSignature)
	}
	ts, err := strconv.ParseInt(header.Get(HeaderTimestamp), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad %s", ErrInvalidSignature, HeaderTimestamp)
	}

	if maxAge > 0 {
		age := now.Sub(time.Unix(ts, 0))
		if age > maxAge {
			return fmt.Errorf("%w: timestamp too old", ErrInvalidSignature)
		}
		if age < -time.Minute {
			return fmt.Errorf("%w: timestamp in the future", ErrInvalidSignature)
		}
	}

	if !hmac.Equal([]byte(Sign(secret, ts, payload)), []byte(sig)) {
		return fmt.Errorf("%w: signature mismatch", ErrInvalidSignature)
	}
	return nil
}
