package runmode

import (
	"context"
	"os/exec"

	"github.com/BetterCallFirewall/a2ct-go/internal/errs"
	"github.com/BetterCallFirewall/a2ct-go/internal/models"
)

// ResetRunner restores the target application to a known state between
// crawl passes, the way original_source/a2ct.py shells out to the
// reset_script path from the config document before each user's crawl.
type ResetRunner interface {
	Reset(ctx context.Context) error
}

// AuthRunner refreshes a user's session credentials, the way
// original_source/modules/docker_service.py shells out to auth_script to
// mint a fresh cookie/token for a given username before replay.
type AuthRunner interface {
	Authenticate(ctx context.Context, username string) (string, error)
}

// CrawlSink is the out-of-scope browser-driven crawler/proxy boundary
// (spec.md §1): something that crawls the target under username and returns
// the captured requests. depth carries the run-mode's iteration_depth hint
// through to whatever real crawler implements this interface; this module
// ships no implementation of it.
type CrawlSink interface {
	Crawl(ctx context.Context, username string, depth int) ([]models.RequestRecord, error)
}

// ScriptResetRunner runs an external reset script as a subprocess. It is the
// only ResetRunner this package ships; config.Target.ResetScript names the
// executable.
type ScriptResetRunner struct {
	Path string
}

// Reset runs the configured reset script to completion, surfacing its
// output in the wrapped error on failure.
func (r ScriptResetRunner) Reset(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, r.Path)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return errs.Config("reset script: "+string(out), err)
	}
	return nil
}

// ScriptAuthRunner runs an external auth script as a subprocess, passing the
// username as its sole argument and reading the fresh credential from
// stdout. config.Target.AuthScript names the executable.
type ScriptAuthRunner struct {
	Path string
}

// Authenticate runs the configured auth script for username and returns its
// trimmed stdout as the fresh credential value.
func (r ScriptAuthRunner) Authenticate(ctx context.Context, username string) (string, error) {
	cmd := exec.CommandContext(ctx, r.Path, username)
	out, err := cmd.Output()
	if err != nil {
		return "", errs.Config("auth script", err)
	}
	return trimTrailingNewline(string(out)), nil
}

func trimTrailingNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
