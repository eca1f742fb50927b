package billing

import (
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newFixedVerifier() *SignatureVerifier {
	v := NewSignatureVerifier(DefaultSignatureTolerance, nil)
	v.Now = func() time.Time { return fixedNow }
	return v
}

func TestVerifyPolarSignature_Valid(t *testing.T) {
	payload := []byte(`{"type":"subscription.created"}`)
	header := SignPolarWebhook(payload, "whsec", fixedNow)

	assert.True(t, newFixedVerifier().Verify(payload, header, "whsec"))
}

func TestVerifyPolarSignature_Freshness(t *testing.T) {
	payload := []byte(`{"foo":"bar"}`)
	v := newFixedVerifier()

	tests := []struct {
		name   string
		offset time.Duration
		want   bool
	}{
		{name: "stale replay", offset: -601 * time.Second, want: false},
		{name: "future timestamp", offset: 601 * time.Second, want: false},
		{name: "just inside past window", offset: -299 * time.Second, want: true},
		{name: "just inside future window", offset: 299 * time.Second, want: true},
		{name: "exactly at tolerance", offset: -300 * time.Second, want: true},
		{name: "one second past tolerance", offset: -301 * time.Second, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := SignPolarWebhook(payload, "whsec", fixedNow.Add(tt.offset))
			assert.Equal(t, tt.want, v.Verify(payload, header, "whsec"))
		})
	}
}

func TestVerifyPolarSignature_ConfigurableTolerance(t *testing.T) {
	payload := []byte(`{"foo":"bar"}`)
	v := newFixedVerifier()
	v.Tolerance = 10 * time.Minute

	header := SignPolarWebhook(payload, "whsec", fixedNow.Add(-599*time.Second))
	assert.True(t, v.Verify(payload, header, "whsec"))

	header = SignPolarWebhook(payload, "whsec", fixedNow.Add(-601*time.Second))
	assert.False(t, v.Verify(payload, header, "whsec"))
}

func TestVerifyPolarSignature_FailsClosed(t *testing.T) {
	payload := []byte(`{"foo":"bar"}`)
	valid := SignPolarWebhook(payload, "whsec", fixedNow)
	_, sig, _ := strings.Cut(valid, ",v1=")
	ts := "t=" + strings.TrimPrefix(strings.Split(valid, ",")[0], "t=")
	v := newFixedVerifier()

	tests := []struct {
		name    string
		payload []byte
		header  string
		secret  string
	}{
		{name: "empty header", payload: payload, header: "", secret: "whsec"},
		{name: "missing timestamp", payload: payload, header: "v1=" + sig, secret: "whsec"},
		{name: "missing signature", payload: payload, header: ts, secret: "whsec"},
		{name: "non numeric timestamp", payload: payload, header: "t=abc,v1=" + sig, secret: "whsec"},
		{name: "malformed hex", payload: payload, header: ts + ",v1=zz" + sig[2:], secret: "whsec"},
		{name: "truncated signature", payload: payload, header: ts + ",v1=" + sig[:10], secret: "whsec"},
		{name: "extended signature", payload: payload, header: ts + ",v1=" + sig + "00", secret: "whsec"},
		{name: "empty secret", payload: payload, header: valid, secret: ""},
		{name: "empty body", payload: nil, header: valid, secret: "whsec"},
		{name: "garbage", payload: payload, header: "t=,v1=,,==", secret: "whsec"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, v.Verify(tt.payload, tt.header, tt.secret))
		})
	}
}

func TestVerifyPolarSignature_AnyV1Matches(t *testing.T) {
	payload := []byte(`{"foo":"bar"}`)
	valid := SignPolarWebhook(payload, "whsec", fixedNow)
	header := valid + ",v1=" + strings.Repeat("ab", 32)

	assert.True(t, newFixedVerifier().Verify(payload, header, "whsec"))
}

func TestVerifyPolarWebhookSignature_UsesWallClock(t *testing.T) {
	payload := []byte(`{"foo":"bar"}`)
	assert.True(t, VerifyPolarWebhookSignature(payload, SignPolarWebhook(payload, "s3cret", time.Now()), "s3cret"))
	assert.False(t, VerifyPolarWebhookSignature(payload, SignPolarWebhook(payload, "s3cret", time.Now().Add(-time.Hour)), "s3cret"))
}

func flipHexDigit(c byte) byte {
	if c == '0' {
		return '1'
	}
	return '0'
}

func TestProperty_SignatureMutations(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	v := newFixedVerifier()

	nonEmpty := func(s string) bool { return s != "" }

	properties.Property("correctly signed payloads verify", prop.ForAll(
		func(payload, secret string) bool {
			header := SignPolarWebhook([]byte(payload), secret, fixedNow)
			return v.Verify([]byte(payload), header, secret)
		},
		gen.AnyString().SuchThat(nonEmpty),
		gen.AlphaString().SuchThat(nonEmpty),
	))

	properties.Property("single byte payload mutation fails", prop.ForAll(
		func(payload, secret string, idx int) bool {
			header := SignPolarWebhook([]byte(payload), secret, fixedNow)
			mutated := []byte(payload)
			mutated[idx%len(mutated)] ^= 0x01
			return !v.Verify(mutated, header, secret)
		},
		gen.AlphaString().SuchThat(nonEmpty),
		gen.AlphaString().SuchThat(nonEmpty),
		gen.IntRange(0, 1<<16),
	))

	properties.Property("single byte secret mutation fails", prop.ForAll(
		func(payload, secret string, idx int) bool {
			header := SignPolarWebhook([]byte(payload), secret, fixedNow)
			mutated := []byte(secret)
			mutated[idx%len(mutated)] ^= 0x01
			return !v.Verify([]byte(payload), header, string(mutated))
		},
		gen.AlphaString().SuchThat(nonEmpty),
		gen.AlphaString().SuchThat(nonEmpty),
		gen.IntRange(0, 1<<16),
	))

	properties.Property("single byte signature mutation fails", prop.ForAll(
		func(payload, secret string, idx int) bool {
			header := []byte(SignPolarWebhook([]byte(payload), secret, fixedNow))
			sigStart := strings.Index(string(header), "v1=") + len("v1=")
			pos := sigStart + idx%(len(header)-sigStart)
			header[pos] = flipHexDigit(header[pos])
			return !v.Verify([]byte(payload), string(header), secret)
		},
		gen.AlphaString().SuchThat(nonEmpty),
		gen.AlphaString().SuchThat(nonEmpty),
		gen.IntRange(0, 1<<16),
	))

	properties.TestingRun(t)
}
