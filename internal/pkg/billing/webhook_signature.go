package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ManuelReschke/Arcana/internal/pkg/logging"
)

// PolarSignatureHeader carries "t=<unix-seconds>,v1=<hex-hmac-sha256>".
const PolarSignatureHeader = "polar-signature"

// DefaultSignatureTolerance bounds how far a signed timestamp may drift from
// now, in either direction.
const DefaultSignatureTolerance = 5 * time.Minute

// SignatureVerifier authenticates raw webhook bodies. It must run before the
// body is parsed.
type SignatureVerifier struct {
	Tolerance time.Duration
	Now       func() time.Time
	Logger    *zap.Logger
}

func NewSignatureVerifier(tolerance time.Duration, logger *zap.Logger) *SignatureVerifier {
	if tolerance <= 0 {
		tolerance = DefaultSignatureTolerance
	}
	return &SignatureVerifier{
		Tolerance: tolerance,
		Now:       time.Now,
		Logger:    logging.OrNop(logger),
	}
}

// VerifyPolarWebhookSignature checks a header against the default tolerance.
func VerifyPolarWebhookSignature(payload []byte, signatureHeader, webhookSecret string) bool {
	return NewSignatureVerifier(DefaultSignatureTolerance, nil).Verify(payload, signatureHeader, webhookSecret)
}

// Verify reports whether signatureHeader is a fresh, valid signature of
// rawBody under secret. It fails closed on any malformed input.
func (v *SignatureVerifier) Verify(rawBody []byte, signatureHeader, secret string) bool {
	log := logging.OrNop(v.Logger)

	secret = strings.TrimSpace(secret)
	if len(rawBody) == 0 || secret == "" {
		log.Debug("webhook signature: empty body or secret")
		return false
	}

	ts, signatures, ok := parseSignatureHeader(signatureHeader)
	if !ok {
		log.Warn("webhook signature: malformed header")
		return false
	}

	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	tolerance := v.Tolerance
	if tolerance <= 0 {
		tolerance = DefaultSignatureTolerance
	}
	skew := now().Sub(time.Unix(ts, 0))
	if skew > tolerance || skew < -tolerance {
		log.Warn("webhook signature: timestamp outside tolerance",
			zap.Duration("skew", skew),
			zap.Bool("future", skew < 0),
		)
		return false
	}

	expected := computeSignature(rawBody, secret, ts)
	for _, sig := range signatures {
		decoded, err := hex.DecodeString(strings.ToLower(sig))
		if err != nil {
			continue
		}
		if constantTimeEqual(decoded, expected) {
			return true
		}
	}

	log.Warn("webhook signature: mismatch")
	return false
}

// SignPolarWebhook builds a header value for payload signed at ts.
func SignPolarWebhook(payload []byte, secret string, ts time.Time) string {
	unix := ts.Unix()
	return "t=" + strconv.FormatInt(unix, 10) + ",v1=" + hex.EncodeToString(computeSignature(payload, secret, unix))
}

func computeSignature(payload []byte, secret string, ts int64) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}

// constantTimeEqual keeps the cost of a length mismatch equal to a full
// digest comparison.
func constantTimeEqual(got, expected []byte) bool {
	if len(got) != len(expected) {
		subtle.ConstantTimeCompare(expected, expected)
		return false
	}
	return subtle.ConstantTimeCompare(got, expected) == 1
}

// parseSignatureHeader splits "t=...,v1=..." into its timestamp and every v1
// signature. Unknown keys are ignored.
func parseSignatureHeader(header string) (int64, []string, bool) {
	var (
		ts         int64
		haveTS     bool
		signatures []string
	)

	for _, part := range strings.Split(strings.TrimSpace(header), ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, false
			}
			ts, haveTS = parsed, true
		case "v1":
			if value != "" {
				signatures = append(signatures, value)
			}
		}
	}

	if !haveTS || len(signatures) == 0 {
		return 0, nil, false
	}
	return ts, signatures, true
}
