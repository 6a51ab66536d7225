// Package replay implements the replay engine (C5): it re-emits a first
// user's request as a second user, applies the validator chain, and records
// candidate vulnerabilities. Grounded on modules/replay_testing.py's
// ReplayTester.run_tests in the A2CT reference implementation.
package replay

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/BetterCallFirewall/a2ct-go/internal/models"
)

// Config is the per-run replay configuration.
type Config struct {
	FullMode       bool
	MatchingMode   MatchingMode
	MatchingDebug  bool // record both M3 and M4 profile scores on every replay result
	InterThreshold int
	RegexToMatch   *regexp.Regexp
	StrippingTags  []string
	CSRFHeader     string
	CSRFBodyField  string
	RequestTimeout time.Duration
}

// Engine replays pair records under a second user's credential and decides
// which replays constitute candidate vulnerabilities.
type Engine struct {
	Client *http.Client
	Config Config
}

// NewEngine builds an Engine with an http.Client matching the spec's "TLS
// verification off, redirects disabled" outbound transport.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		Client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // replay target is a test application, matches original's verify=False
			},
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		Config: cfg,
	}
}

// FreshCSRFToken generates the per-replay CSRF token substituted into the
// header/body, when csrf is configured. Callers that don't need fresh tokens
// per replay can pass a constant-returning function.
type FreshCSRFToken func() string

// Run replays one pair record under cred and reports whether it constitutes
// a candidate vulnerability. It returns (nil, false, nil) when the request
// is skipped per the spec's pre-replay rules (4xx/5xx originals, GET+3xx
// originals).
func (e *Engine) Run(ctx context.Context, req models.PairRecord, cred Credential, u1AuthCookieNames []string, freshToken FreshCSRFToken) (*models.ReplayResult, bool, error) {
	if req.Status >= 400 {
		return nil, false, nil
	}
	originalIsRedirect := req.Status >= 300 && req.Status < 400
	if req.Method == http.MethodGet && originalIsRedirect {
		return nil, false, nil
	}

	var csrfValue string
	if freshToken != nil {
		csrfValue = freshToken()
	}

	headers := PrepareHeaders(req.Headers, req.SecondUser, cred, u1AuthCookieNames, e.Config.CSRFHeader, csrfValue)
	body := SubstituteCSRFBodyField(req.Body, e.Config.CSRFBodyField, csrfValue)

	reqCtx := ctx
	var cancel context.CancelFunc
	if e.Config.RequestTimeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, e.Config.RequestTimeout)
		defer cancel()
	}

	outbound, err := http.NewRequestWithContext(reqCtx, req.Method, req.URL, bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	headers.Each(func(name, value string) {
		outbound.Header.Add(name, value)
	})

	resp, err := e.Client.Do(outbound)
	if err != nil {
		// NetworkError: per spec §7, a failed outbound replay counts as a
		// failed StatusValidator rather than aborting the run.
		return &models.ReplayResult{
			FirstUser: req.FirstUser, SecondUser: req.SecondUser,
			URL: req.URL, Method: req.Method,
			RequestHeaders: headers, RequestBody: body,
			StatusCode: 0,
		}, false, nil
	}
	defer resp.Body.Close()

	replayBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, err
	}

	replayHeaders := models.NewHeaders()
	for name, values := range resp.Header {
		for _, v := range values {
			replayHeaders.Add(name, v)
		}
	}

	result := &models.ReplayResult{
		FirstUser: req.FirstUser, SecondUser: req.SecondUser,
		URL: req.URL, Method: req.Method,
		RequestHeaders: headers, RequestBody: body,
		StatusCode:      resp.StatusCode,
		ResponseHeaders: replayHeaders,
		ResponseBody:    replayBody,
	}

	pass := e.validate(req, originalIsRedirect, result)
	return result, pass, nil
}

func (e *Engine) validate(req models.PairRecord, originalIsRedirect bool, result *models.ReplayResult) bool {
	if !StatusValidator(e.Config.FullMode, result.StatusCode) {
		return false
	}

	if originalIsRedirect {
		originalLocation, hadLocation := req.ResponseHeaders.Get("Location")
		replayLocation, _ := result.ResponseHeaders.Get("Location")
		return RedirectValidator(originalLocation, hadLocation, replayLocation)
	}

	if e.Config.RegexToMatch != nil && !RegexValidator(e.Config.RegexToMatch, result.ResponseBody) {
		return false
	}

	if e.Config.MatchingDebug {
		ok, scores := ContentSimilarityValidatorDebug(e.Config.MatchingMode, e.Config.InterThreshold, e.Config.StrippingTags, req.ResponseBody, result.ResponseBody)
		result.DebugM3Score = &scores.M3Score
		result.DebugM4Score = &scores.M4Score
		return ok
	}

	return ContentSimilarityValidator(e.Config.MatchingMode, e.Config.InterThreshold, e.Config.StrippingTags, req.ResponseBody, result.ResponseBody)
}
