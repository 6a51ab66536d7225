package replay

import (
	"encoding/base64"
	"regexp"

	"github.com/BetterCallFirewall/a2ct-go/internal/models"
)

// scrubbedHeaders is the fixed set of headers stripped from every captured
// request before overlaying the second user's credentials, matching the
// spec's "drop Authorization, Cookie, Host, Accept-Encoding, Connection"
// list. The configured CSRF header is additionally dropped by the caller.
var scrubbedHeaders = []string{"Authorization", "Cookie", "Host", "Accept-Encoding", "Connection"}

// PrepareHeaders builds the outbound header set for replaying original
// under secondUser's credential. u1AuthCookieNames names the cookie keys
// known to belong to the first user's own session (so they can be scrubbed
// rather than leaked when secondUser is public).
//
// Unlike the reference implementation — which concatenates "Bearer " onto
// whatever auth_user_2 holds for both JWT and (erroneously) Basic auth — this
// normalizes per credential kind: Basic becomes "Basic "+base64(user:pass),
// Bearer becomes "Bearer "+token. See DESIGN.md for the resolved open
// question this replaces.
func PrepareHeaders(original *models.Headers, secondUser string, cred Credential, u1AuthCookieNames []string, csrfHeader, csrfHeaderValue string) *models.Headers {
	h := original.Clone()
	for _, name := range scrubbedHeaders {
		h.Del(name)
	}
	if csrfHeader != "" {
		h.Del(csrfHeader)
	}

	merged := ParseCookies(firstValue(original, "Cookie"))
	switch {
	case secondUser == models.PublicUser:
		for _, name := range u1AuthCookieNames {
			delete(merged, name)
		}
	case cred.Kind == CredentialCookie:
		for name, value := range ParseCookies(cred.Value) {
			merged[name] = value
		}
	}
	if len(merged) > 0 {
		h.Set("Cookie", SerializeCookies(merged))
	}

	switch cred.Kind {
	case CredentialJWT:
		h.Set("Authorization", "Bearer "+cred.Value)
	case CredentialBasic:
		h.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(cred.Value)))
	}

	if csrfHeader != "" && csrfHeaderValue != "" {
		h.Set(csrfHeader, csrfHeaderValue)
	}
	return h
}

func firstValue(h *models.Headers, name string) string {
	v, _ := h.Get(name)
	return v
}

// csrfBodyFieldPattern builds the substitution regex for a CSRF body field
// name, matching the original's "field=[^&]+" pattern.
func csrfBodyFieldPattern(field string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(field) + `=[^&]+`)
}

// SubstituteCSRFBodyField replaces field's value with freshToken via literal
// "field=<value>" -> "field=<freshToken>" regex substitution, unconditionally
// and regardless of body content type — matching
// original_source/modules/replay_testing.py's regex-only approach. A JSON
// body whose field isn't spelled "field=value" in the raw bytes is left
// unchanged, same as the original.
func SubstituteCSRFBodyField(body []byte, field, freshToken string) []byte {
	if field == "" {
		return body
	}
	re := csrfBodyFieldPattern(field)
	return re.ReplaceAll(body, []byte(field+"="+freshToken))
}
