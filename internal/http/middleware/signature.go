package middleware

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"sort"
	"strings"
)

// TwilioSignature validates X-Twilio-Signature on the webhook path:
// HMAC-SHA1 over the full request URL plus the sorted POST parameters
// concatenated as key+value, base64-encoded, keyed with the account's auth
// token. An empty token disables validation, mirroring local development
// without credentials. Rejections are an empty 403 so a misconfigured
// upstream still gets no payload to retry-storm on.
func TwilioSignature(authToken, publicBaseURL, protectedPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authToken == "" || r.URL.Path != protectedPath {
				next.ServeHTTP(w, r)
				return
			}

			if err := r.ParseForm(); err != nil {
				w.WriteHeader(http.StatusForbidden)
				return
			}

			expected := computeSignature(authToken, requestURL(r, publicBaseURL), r.PostForm)
			provided := r.Header.Get("X-Twilio-Signature")
			if provided == "" || !hmac.Equal([]byte(expected), []byte(provided)) {
				w.WriteHeader(http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func computeSignature(authToken, url string, form map[string][]string) string {
	keys := make([]string, 0, len(form))
	for key := range form {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	payload := strings.Builder{}
	payload.WriteString(url)
	for _, key := range keys {
		for _, value := range form[key] {
			payload.WriteString(key)
			payload.WriteString(value)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(payload.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func requestURL(r *http.Request, publicBaseURL string) string {
	if publicBaseURL != "" {
		return strings.TrimSuffix(publicBaseURL, "/") + r.URL.RequestURI()
	}
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
