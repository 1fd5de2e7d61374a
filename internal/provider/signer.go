package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"time"
)

const signingAlgorithm = "HMAC-SHA256"

// Headers included in the signature, in canonical order. The vendor rejects
// requests whose signature covers a different set.
var signedHeaderNames = []string{"content-type", "host", "x-content-sha256", "x-date"}

// signer computes canonical-request HMAC-SHA256 signatures for the Volcengine
// visual API. The construction must match the vendor byte for byte: date
// stamp format, header ordering, and hashing the canonical request before the
// final sign.
type signer struct {
	accessKeyID     string
	secretAccessKey string
	region          string
	service         string
	host            string

	// now is injectable so signatures are deterministic under test.
	now func() time.Time
}

func newSigner(accessKeyID, secretAccessKey, region, service, host string) *signer {
	return &signer{
		accessKeyID:     accessKeyID,
		secretAccessKey: secretAccessKey,
		region:          region,
		service:         service,
		host:            host,
		now:             time.Now,
	}
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// signingKey derives the per-request key by chaining four HMAC operations:
// secret -> date -> region -> service -> "request".
func (s *signer) signingKey(dateStamp string) []byte {
	kDate := hmacSHA256([]byte(s.secretAccessKey), dateStamp)
	kRegion := hmacSHA256(kDate, s.region)
	kService := hmacSHA256(kRegion, s.service)
	return hmacSHA256(kService, "request")
}

// canonicalQuery renders query parameters sorted by key with URI escaping.
func canonicalQuery(query url.Values) string {
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, uriEscape(k)+"="+uriEscape(query.Get(k)))
	}
	return strings.Join(pairs, "&")
}

// uriEscape percent-encodes like encodeURIComponent: spaces become %20, not +.
func uriEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// sign builds the signed header set for a request. The returned map contains
// the four signed headers plus Authorization; callers copy them onto the
// outgoing request verbatim.
func (s *signer) sign(method, path string, query url.Values, body []byte) map[string]string {
	t := s.now().UTC()
	dateStamp := t.Format("20060102")
	xDate := t.Format("20060102T150405Z")

	payloadHash := sha256Hex(body)

	headers := map[string]string{
		"content-type":     "application/json",
		"host":             s.host,
		"x-content-sha256": payloadHash,
		"x-date":           xDate,
	}

	canonicalHeaders := make([]string, 0, len(signedHeaderNames))
	for _, name := range signedHeaderNames {
		canonicalHeaders = append(canonicalHeaders, name+":"+strings.TrimSpace(headers[name]))
	}

	canonicalRequest := strings.Join([]string{
		method,
		path,
		canonicalQuery(query),
		strings.Join(canonicalHeaders, "\n") + "\n",
		strings.Join(signedHeaderNames, ";"),
		payloadHash,
	}, "\n")

	credentialScope := strings.Join([]string{dateStamp, s.region, s.service, "request"}, "/")

	stringToSign := strings.Join([]string{
		signingAlgorithm,
		xDate,
		credentialScope,
		sha256Hex([]byte(canonicalRequest)),
	}, "\n")

	signature := hex.EncodeToString(hmacSHA256(s.signingKey(dateStamp), stringToSign))

	headers["Authorization"] = signingAlgorithm +
		" Credential=" + s.accessKeyID + "/" + credentialScope +
		", SignedHeaders=" + strings.Join(signedHeaderNames, ";") +
		", Signature=" + signature

	return headers
}
