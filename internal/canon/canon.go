// Package canon implements the canonicalizer (C1): it decides whether two
// captured requests are equivalent under one of four deduplication
// strictness modes, grounded on modules/filters.py's
// delete_query_string_request_body_duplicates and
// delete_json_query_string_request_body_duplicates in the A2CT reference
// implementation.
package canon

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/BetterCallFirewall/a2ct-go/internal/jsonflat"
	"github.com/BetterCallFirewall/a2ct-go/internal/models"
)

// Mode selects how strictly two requests are compared.
type Mode int

const (
	// M1 ignores bodies entirely; query parameters compare as a multiset of
	// (name, value) pairs.
	M1 Mode = iota
	// M2 adds structured-body comparison by parameter name only.
	M2
	// M3's strictness depends on the caller: DeduplicationFilter's
	// exact-duplicate subpass asks for name-only comparison (M2 behavior);
	// PublicContentFilter and OtherUserContentFilter ask for name-and-value
	// comparison (M4 behavior). See Equivalent's namesOnly parameter.
	M3
	// M4 compares both query and body as a multiset of (name, value) pairs.
	M4
)

// bodyKind classifies how a request body was decoded.
type bodyKind int

const (
	bodyNone bodyKind = iota
	bodyForm
	bodyJSON
	bodyRaw // undecodable as form or JSON; only exact-byte comparison applies
)

// Fingerprint is the canonical shape of a request: method, path, and decoded
// query/body dicts with ignore-tokens already applied. Building it once and
// reusing it across comparisons avoids re-parsing the same request for every
// pair it's compared against.
type Fingerprint struct {
	Method    string
	Path      string
	RawURL    string
	RawBody   []byte
	Query     Dict
	BodyKind  bodyKind
	Body      Dict
}

// formContentType matches modules/filters.py's case-insensitive substring
// check on the Content-Type header, tolerant of a "; charset=..." suffix and
// surrounding whitespace.
var formContentType = "application/x-www-form-urlencoded"

// Canonicalize decodes a captured request into a Fingerprint. ignoreTokens
// may be nil to skip the ignore-tokens pass.
func Canonicalize(method, rawURL string, headers *models.Headers, body []byte, ignoreTokens *regexp.Regexp) Fingerprint {
	path, rawQuery := SplitURL(rawURL)

	query, _ := url.ParseQuery(rawQuery)
	queryDict := ApplyIgnoreTokens(Dict(query), ignoreTokens)

	fp := Fingerprint{
		Method:  method,
		Path:    path,
		RawURL:  rawURL,
		RawBody: body,
		Query:   queryDict,
	}

	if len(body) == 0 {
		fp.BodyKind = bodyNone
		return fp
	}

	contentType := ""
	if headers != nil {
		contentType, _ = headers.Get("Content-Type")
	}
	switch {
	case isFormContentType(contentType):
		form, err := url.ParseQuery(string(body))
		if err != nil {
			fp.BodyKind = bodyRaw
			return fp
		}
		fp.BodyKind = bodyForm
		fp.Body = ApplyIgnoreTokens(Dict(form), ignoreTokens)
	default:
		flat, err := jsonflat.FlattenDict(body)
		if err != nil {
			fp.BodyKind = bodyRaw
			return fp
		}
		fp.BodyKind = bodyJSON
		fp.Body = ApplyIgnoreTokens(Dict(flat), ignoreTokens)
	}
	return fp
}

// SplitURL splits rawURL on its first '?' into path and query, stripping a
// trailing lone '?' (a URL with no actual query string) before storage.
func SplitURL(rawURL string) (path, query string) {
	path, query, found := strings.Cut(rawURL, "?")
	if !found {
		return path, ""
	}
	return path, query
}

func isFormContentType(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), formContentType)
}

// ExactByteEqual is the unconditional prelude run before any mode-dependent
// comparison: same user, same URL string, same method, same raw body.
func ExactByteEqual(a, b models.RequestRecord) bool {
	return a.FirstUser == b.FirstUser &&
		a.Method == b.Method &&
		a.URL == b.URL &&
		bytes.Equal(a.Body, b.Body)
}

// Equivalent decides whether two fingerprints are equivalent under mode.
// namesOnly only matters when mode is M3: true reproduces
// DeduplicationFilter's name-only subpass, false reproduces
// PublicContentFilter/OtherUserContentFilter's name-and-value comparison.
func Equivalent(a, b Fingerprint, mode Mode, namesOnly bool) bool {
	if a.Method != b.Method || a.Path != b.Path {
		return false
	}
	if !SameValues(a.Query, b.Query) {
		return false
	}
	if mode == M1 {
		return true
	}

	valuesMode := mode == M4 || (mode == M3 && !namesOnly)
	return compareBody(a, b, valuesMode)
}

func compareBody(a, b Fingerprint, valuesMode bool) bool {
	if a.BodyKind != b.BodyKind {
		return false
	}
	switch a.BodyKind {
	case bodyNone:
		return true
	case bodyRaw:
		return bytes.Equal(a.RawBody, b.RawBody)
	default: // bodyForm, bodyJSON
		if valuesMode {
			return SameValues(a.Body, b.Body)
		}
		return SameNames(a.Body, b.Body)
	}
}
