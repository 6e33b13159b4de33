package messaging

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// SignatureHeader carries the provider's request signature.
const SignatureHeader = "X-Twilio-Signature"

// Verifier authenticates Twilio webhook callbacks.
// Outside production every request is accepted so the webhook can be exercised locally.
type Verifier struct {
	Production bool
	AuthToken  string
}

// Verify reports whether the request carries a valid signature for webhookURL and form.
func (v Verifier) Verify(r *http.Request, form url.Values, webhookURL string) bool {
	if !v.Production {
		return true
	}
	if r == nil || v.AuthToken == "" {
		return false
	}
	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		return false
	}
	expected := computeSignature(buildSignaturePayload(webhookURL, form), v.AuthToken)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// buildSignaturePayload concatenates the URL with every key+value of the form, keys sorted.
func buildSignaturePayload(webhookURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(webhookURL)
	for _, key := range keys {
		for _, value := range params[key] {
			payload.WriteString(key)
			payload.WriteString(value)
		}
	}
	return payload.String()
}

func computeSignature(data, key string) string {
	h := hmac.New(sha1.New, []byte(key))
	h.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// SignForTest returns the signature Twilio would send for the URL and form.
func SignForTest(authToken, webhookURL string, form url.Values) string {
	return computeSignature(buildSignaturePayload(webhookURL, form), authToken)
}

// WebhookURL reconstructs the public URL Twilio signed. A configured public base URL wins over
// forwarded headers.
func WebhookURL(r *http.Request, publicBaseURL string) string {
	if r == nil || r.URL == nil {
		return ""
	}
	if base := strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"); base != "" {
		return base + r.URL.RequestURI()
	}
	if r.URL.Scheme != "" && r.URL.Host != "" {
		return r.URL.String()
	}
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "https"
		if r.TLS == nil {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return fmt.Sprintf("%s://%s%s", scheme, host, r.URL.RequestURI())
}
