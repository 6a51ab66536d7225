// Command a2ct runs one access-control test against a target application:
// crawl under each configured identity, filter captured requests down to
// genuine cross-user candidates, replay them under every other identity, and
// verify the survivors before printing the findings table. Flags mirror
// original_source/a2ct.py's command line; config.Load carries everything the
// flags don't.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/BetterCallFirewall/a2ct-go/internal/config"
	"github.com/BetterCallFirewall/a2ct-go/internal/errs"
	"github.com/BetterCallFirewall/a2ct-go/internal/models"
	"github.com/BetterCallFirewall/a2ct-go/internal/pipeline"
	"github.com/BetterCallFirewall/a2ct-go/internal/progress"
	"github.com/BetterCallFirewall/a2ct-go/internal/replay"
	"github.com/BetterCallFirewall/a2ct-go/internal/runmode"
	"github.com/BetterCallFirewall/a2ct-go/internal/store"
	"github.com/BetterCallFirewall/a2ct-go/internal/verify"
)

func main() {
	configPath := flag.String("config", "a2ct.yaml", "path to the run configuration document")
	mode := flag.String("mode", "cfrv", "run-mode token over {c,f,r,v}")
	fullMode := flag.Bool("full-mode", false, "accept 200-302 and 307 replay statuses instead of 2xx only")
	matching := flag.String("matching-mode", string(replay.MatchingM3), "content-similarity profile: m3i or m4i")
	matchingDebug := flag.Bool("matching-debug", false, "record both m3i and m4i profile scores on every replay result")
	duplicateCheck := flag.Bool("duplicate-check", true, "run the exact-byte dedup prelude before canonical equivalence")
	iterationDepth := flag.Int("iteration-depth", 0, "crawl depth hint passed to the external crawler")
	workers := flag.Int("workers", 4, "concurrent worker count for the per-pair filter stage")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init:", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("config load failed", zap.Error(err))
		os.Exit(runmode.ExitCode(err))
	}

	stages := runmode.ParseStages(*mode)
	hub := progress.NewHub(log)
	go hub.Run()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	s := store.New(store.RetentionDev)

	if err := run(ctx, log, hub, s, cfg, stages, runmode.Flags{
		FullMode:       *fullMode,
		MatchingMode:   replay.MatchingMode(*matching),
		MatchingDebug:  *matchingDebug,
		DBLogLevel:     store.RetentionDev,
		DuplicateCheck: *duplicateCheck,
		IterationDepth: *iterationDepth,
	}, *workers); err != nil {
		log.Error("run failed", zap.Error(err))
		os.Exit(runmode.ExitCode(err))
	}

	runmode.PrintFindings(os.Stdout, s.Findings())
	os.Exit(runmode.ExitCode(nil))
}

func run(ctx context.Context, log *zap.Logger, hub *progress.Hub, s *store.Store, cfg *config.Config, stages runmode.Stages, flags runmode.Flags, workers int) error {
	pairs := make([]models.PairKey, 0, len(cfg.UserPairs()))
	for _, p := range cfg.UserPairs() {
		pairs = append(pairs, models.PairKey{First: p[0], Second: p[1]})
	}

	var err error
	var ignoreTokens *regexp.Regexp
	if cfg.Options.IgnoreTokens != "" {
		ignoreTokens, err = regexp.Compile(cfg.Options.IgnoreTokens)
		if err != nil {
			return errs.Config("options.ignore_tokens", err)
		}
	}

	pipelineCfg := pipeline.Config{
		Mode:                    flags.DeduplicationMode,
		IgnoreTokens:            ignoreTokens,
		StaticContentExtensions: cfg.Options.StaticContentExtensions,
		StandardPages:           cfg.Options.StandardPages,
		DuplicateCheck:          flags.DuplicateCheck,
	}
	if len(pipelineCfg.StaticContentExtensions) == 0 {
		pipelineCfg.StaticContentExtensions = pipeline.DefaultStaticExtensions
	}
	if len(pipelineCfg.StandardPages) == 0 {
		pipelineCfg.StandardPages = pipeline.DefaultStandardPages
	}

	var regexToMatch *regexp.Regexp
	if cfg.Options.RegexToMatch != "" {
		regexToMatch, err = regexp.Compile("(?m)" + cfg.Options.RegexToMatch)
		if err != nil {
			return errs.Config("options.regex_to_match", err)
		}
	}

	// Stage c: crawling itself lives behind CrawlSink, an external
	// collaborator boundary this module does not implement (see
	// SPEC_FULL.md section 1). A run invoked with only f/r/v
	// expects the crawl stage's table already populated in the store by a
	// prior "c" run or by an external proxy/crawler component.
	if stages.Crawl {
		log.Info("crawl stage requested but out of scope; expecting pre-populated crawl table",
			zap.Int("iteration_depth", flags.IterationDepth))
	}

	if stages.Filter {
		runPhase(s, "filter", func() {
			hub.Broadcast(progress.StageStarted(pipeline.StageDedup))
			pipeline.DeduplicationFilter(s, pipelineCfg)
			hub.Broadcast(progress.StageFinished(pipeline.StageDedup))

			hub.Broadcast(progress.StageStarted(pipeline.StagePublic))
			pipeline.PublicContentFilter(s, pipelineCfg)
			hub.Broadcast(progress.StageFinished(pipeline.StagePublic))

			pipeline.StaticContentFilter(s, pipelineCfg.StaticContentExtensions)
			pipeline.StandardPagesFilter(s, pipelineCfg.StandardPages)

			if err := pipeline.RunPairs(ctx, s, pipelineCfg, pairs, workers); err != nil {
				log.Warn("per-pair filter stage incomplete", zap.Error(err))
			}
		})
	}

	if stages.Replay {
		runPhase(s, "replay", func() {
			engine := replay.NewEngine(replay.Config{
				FullMode:       flags.FullMode,
				MatchingMode:   flags.MatchingMode,
				MatchingDebug:  flags.MatchingDebug,
				InterThreshold: cfg.Options.InterThresholdValidating,
				RegexToMatch:   regexToMatch,
				StrippingTags:  cfg.Options.HTMLStrippingTags,
				CSRFHeader:     cfg.Auth.CSRFHeader,
				CSRFBodyField:  cfg.Auth.CSRFField,
				RequestTimeout: 30 * time.Second,
			})
			for _, pair := range pairs {
				hub.Broadcast(progress.Event{Type: "pair_progress", Pair: pair.First + "->" + pair.Second, Timestamp: time.Now().Unix()})
				rows := s.PairStage(pipeline.StageOtherUser, pair)
				cred := credentialFor(cfg, pair.Second)
				u1AuthCookieNames := cookieNamesFor(cfg, pair.First)
				freshToken := freshCSRFTokenFor(cfg, pair.Second)
				for _, req := range rows {
					result, isCandidate, err := engine.Run(ctx, req, cred, u1AuthCookieNames, freshToken)
					if err != nil {
						log.Warn("replay failed", zap.String("url", req.URL), zap.Error(err))
						continue
					}
					if result != nil {
						s.AddReplayResult(*result)
					}
					if isCandidate {
						s.AddCandidate(models.VulnerabilityCandidate{
							FirstUser: req.FirstUser, SecondUser: pair.Second,
							URL: req.URL, Method: req.Method,
							RequestHeaders: req.Headers, RequestBody: req.Body,
						})
					}
				}
			}
		})
	}

	if stages.Verify {
		runPhase(s, "verify", func() {
			verifier := verify.New(s, verify.Config{
				MatchingMode:  flags.MatchingMode,
				Threshold:     cfg.Options.InterThresholdValidating,
				StrippingTags: cfg.Options.HTMLStrippingTags,
			})
			ownCrawl := s.Stage(pipeline.StageCrawl)
			for _, pair := range pairs {
				for _, f := range verifier.Check(pair, ownCrawl) {
					s.AddFinding(f)
				}
			}
		})
	}

	return nil
}

func runPhase(s *store.Store, name string, fn func()) {
	started := time.Now()
	fn()
	s.RecordPhase(models.ExecutionPhase{Phase: name, Started: started, Duration: time.Since(started)})
}

func credentialFor(cfg *config.Config, username string) replay.Credential {
	raw, ok := cfg.Auth.Tokens[username]
	if !ok {
		return replay.Credential{}
	}
	kind, value, found := cutKind(raw)
	if !found {
		return replay.Credential{Kind: replay.CredentialCookie, Value: raw}
	}
	return replay.Credential{Kind: replay.CredentialKind(kind), Value: value}
}

// cookieNamesFor enumerates the cookie names belonging to username's own
// session credential, so PrepareHeaders can scrub them from the outbound
// jar when replaying as the public user (spec §4.5 step 2 / §9).
func cookieNamesFor(cfg *config.Config, username string) []string {
	cred := credentialFor(cfg, username)
	if cred.Kind != replay.CredentialCookie {
		return nil
	}
	names := make([]string, 0, 1)
	for name := range replay.ParseCookies(cred.Value) {
		names = append(names, name)
	}
	return names
}

// freshCSRFTokenFor returns the configured fresh CSRF token for username,
// read from auth.csrf_values, as a FreshCSRFToken for engine.Run.
func freshCSRFTokenFor(cfg *config.Config, username string) replay.FreshCSRFToken {
	token := cfg.Auth.CSRFValues[username]
	return func() string { return token }
}

func cutKind(raw string) (kind, value string, ok bool) {
	for i := 0; i < len(raw); i++ {
		if raw[i] == ' ' {
			return raw[:i], raw[i+1:], true
		}
	}
	return "", "", false
}
