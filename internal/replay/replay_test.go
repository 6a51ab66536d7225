package replay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BetterCallFirewall/a2ct-go/internal/models"
)

func TestParseAndSerializeCookies_RoundTrip(t *testing.T) {
	cookies := ParseCookies("session=abc; theme=dark")
	assert.Equal(t, "abc", cookies["session"])
	assert.Equal(t, "dark", cookies["theme"])
	assert.Equal(t, "session=abc; theme=dark", SerializeCookies(cookies))
}

func TestPrepareHeaders_ScrubsListedHeadersAndOverlaysCookie(t *testing.T) {
	original := models.NewHeaders(
		[2]string{"Authorization", "Bearer old"},
		[2]string{"Cookie", "session=u1tok; other=1"},
		[2]string{"Host", "example.com"},
		[2]string{"Accept", "text/html"},
	)

	cred := Credential{Kind: CredentialCookie, Value: "session=u2tok"}
	h := PrepareHeaders(original, "bob", cred, []string{"session"}, "", "")

	assert.False(t, h.Has("Authorization"))
	assert.False(t, h.Has("Host"))
	cookie, ok := h.Get("Cookie")
	require.True(t, ok)
	assert.Contains(t, cookie, "session=u2tok")
	assert.Contains(t, cookie, "other=1")
	assert.True(t, h.Has("Accept"))
}

func TestPrepareHeaders_PublicUserScrubsU1AuthCookies(t *testing.T) {
	original := models.NewHeaders([2]string{"Cookie", "session=u1tok; lang=en"})
	h := PrepareHeaders(original, models.PublicUser, Credential{}, []string{"session"}, "", "")

	cookie, _ := h.Get("Cookie")
	assert.NotContains(t, cookie, "session=")
	assert.Contains(t, cookie, "lang=en")
}

func TestPrepareHeaders_NormalizesBearerAndBasic(t *testing.T) {
	bearer := PrepareHeaders(models.NewHeaders(), "bob", Credential{Kind: CredentialJWT, Value: "tok123"}, nil, "", "")
	v, _ := bearer.Get("Authorization")
	assert.Equal(t, "Bearer tok123", v)

	basic := PrepareHeaders(models.NewHeaders(), "bob", Credential{Kind: CredentialBasic, Value: "bob:pw"}, nil, "", "")
	v, _ = basic.Get("Authorization")
	assert.Equal(t, "Basic Ym9iOnB3", v)
}

func TestSubstituteCSRFBodyField(t *testing.T) {
	body := []byte("a=1&tokenCSRF=old&b=2")
	out := SubstituteCSRFBodyField(body, "tokenCSRF", "fresh")
	assert.Equal(t, "a=1&tokenCSRF=fresh&b=2", string(out))
}

func TestSubstituteCSRFBodyField_JSONBodyLeftUnchanged(t *testing.T) {
	// "tokenCSRF":"old" doesn't match the literal field=value pattern, so a
	// JSON body passes through untouched — same as the original implementation.
	body := []byte(`{"a":1,"tokenCSRF":"old","b":2}`)
	out := SubstituteCSRFBodyField(body, "tokenCSRF", "fresh")
	assert.Equal(t, string(body), string(out))
}

func TestStatusValidator_FullMode(t *testing.T) {
	assert.True(t, StatusValidator(true, 200))
	assert.True(t, StatusValidator(true, 302))
	assert.True(t, StatusValidator(true, 307))
	assert.False(t, StatusValidator(true, 303))
	assert.False(t, StatusValidator(true, 308))
	assert.False(t, StatusValidator(true, 401))
	assert.False(t, StatusValidator(true, 403))
}

func TestStatusValidator_ReducedMode(t *testing.T) {
	assert.True(t, StatusValidator(false, 201))
	assert.False(t, StatusValidator(false, 301))
	assert.False(t, StatusValidator(false, 401))
}

func TestRedirectValidator(t *testing.T) {
	assert.True(t, RedirectValidator("", false, "/anywhere"))
	assert.True(t, RedirectValidator("/login", true, "/login"))
	assert.False(t, RedirectValidator("/login", true, "/other"))
}

func TestEngineRun_SkipsOn4xxAnd5xxOriginals(t *testing.T) {
	e := NewEngine(Config{})
	req := models.PairRecord{RequestRecord: models.RequestRecord{Method: "GET", URL: "http://example.com", Status: 404}}
	result, pass, err := e.Run(context.Background(), req, Credential{}, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.False(t, pass)
}

func TestEngineRun_SkipsGetWith3xxOriginal(t *testing.T) {
	e := NewEngine(Config{})
	req := models.PairRecord{RequestRecord: models.RequestRecord{Method: "GET", URL: "http://example.com", Status: 302}}
	result, pass, err := e.Run(context.Background(), req, Credential{}, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.False(t, pass)
}

func TestEngineRun_ContentSimilarityPassesAgainstLiveServer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte(`<html><body><p>Welcome back</p></body></html>`))
	}))
	defer ts.Close()

	e := NewEngine(Config{MatchingMode: MatchingM3, InterThreshold: 80})
	req := models.PairRecord{
		RequestRecord: models.RequestRecord{
			Method: "GET", URL: ts.URL, Status: 200,
			Headers:         models.NewHeaders(),
			ResponseHeaders: models.NewHeaders(),
			ResponseBody:    []byte(`<html><body><p>Welcome back</p></body></html>`),
		},
		SecondUser: "bob",
	}

	result, pass, err := e.Run(context.Background(), req, Credential{}, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, pass)
	assert.Equal(t, 200, result.StatusCode)
}

func TestEngineRun_MatchingDebugRecordsBothProfileScores(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte(`<html><body><p>Welcome back</p></body></html>`))
	}))
	defer ts.Close()

	e := NewEngine(Config{MatchingMode: MatchingM3, InterThreshold: 80, MatchingDebug: true})
	req := models.PairRecord{
		RequestRecord: models.RequestRecord{
			Method: "GET", URL: ts.URL, Status: 200,
			Headers:         models.NewHeaders(),
			ResponseHeaders: models.NewHeaders(),
			ResponseBody:    []byte(`<html><body><p>Welcome back</p></body></html>`),
		},
		SecondUser: "bob",
	}

	result, pass, err := e.Run(context.Background(), req, Credential{}, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, pass)
	require.NotNil(t, result.DebugM3Score)
	require.NotNil(t, result.DebugM4Score)
	assert.Equal(t, 100, *result.DebugM3Score)
}
