// Package config loads the single YAML run configuration document (spec
// §6) the way the teacher's own internal/config/config.go loads its YAML +
// .env pair, substituting gopkg.in/yaml.v3 for the document and
// github.com/joho/godotenv for secret overrides (per-user auth.tokens
// values) instead of raw os.Getenv reads.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/BetterCallFirewall/a2ct-go/internal/errs"
)

// DefaultInterThreshold is the default similarity threshold when
// options.inter_threshold_validating is omitted.
const DefaultInterThreshold = 80

// Config is the full run configuration document.
type Config struct {
	Target  Target  `yaml:"target"`
	Auth    Auth    `yaml:"auth"`
	Options Options `yaml:"options"`
}

// Target holds the required target-application coordinates.
type Target struct {
	TargetURL    string `yaml:"target_url"`
	TargetDomain string `yaml:"target_domain"`
	PathToDB     string `yaml:"path_to_db"`
	ResetScript  string `yaml:"reset_script"`
	AuthScript   string `yaml:"auth_script"`
}

// UserCredential is a single-entry {username: password} map, as the config
// document's auth.users list holds.
type UserCredential map[string]string

// Combinations selects which ordered user pairs the run covers.
type Combinations struct {
	Type      string `yaml:"type"` // "selected" or "all"
	UserPairs string `yaml:"user_pairs"`
}

// Auth holds credential and CSRF configuration.
type Auth struct {
	Users        []UserCredential  `yaml:"users"`
	Combinations Combinations      `yaml:"combinations"`
	Tokens       map[string]string `yaml:"tokens"`      // username -> "Cookie <k=v>" / "JWT <token>" / "HTTP_Basic_Auth <val>"
	CSRFValues   map[string]string `yaml:"csrf_values"` // username -> fresh CSRF token/value
	CSRFField    string            `yaml:"csrf_field"`
	CSRFHeader   string            `yaml:"csrf_header"`
}

// Options holds the tunable filter/replay knobs.
type Options struct {
	StandardPages            []string `yaml:"standard_pages"`
	DoNotCallPages           string   `yaml:"do_not_call_pages"`
	StaticContentExtensions  []string `yaml:"static_content_extensions"`
	IgnoreTokens             string   `yaml:"ignore_tokens"`
	HTMLStrippingTags        []string `yaml:"html_stripping_tags"`
	RegexToMatch             string   `yaml:"regex_to_match"`
	InterThresholdValidating int      `yaml:"inter_threshold_validating"`
}

// Load reads and validates the configuration document at path. A missing
// .env file in the working directory is not an error — only secrets that are actually
// required (auth.tokens values) are overlaid from the environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errs.Config("load .env", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Config("read config file", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errs.Config("parse yaml", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, errs.Config("validate", err)
	}

	cfg.applyEnvOverrides()

	if cfg.Options.InterThresholdValidating == 0 {
		cfg.Options.InterThresholdValidating = DefaultInterThreshold
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.Target.TargetURL == "" {
		missing = append(missing, "target.target_url")
	}
	if c.Target.TargetDomain == "" {
		missing = append(missing, "target.target_domain")
	}
	if c.Target.PathToDB == "" {
		missing = append(missing, "target.path_to_db")
	}
	if c.Target.ResetScript == "" {
		missing = append(missing, "target.reset_script")
	}
	if c.Target.AuthScript == "" {
		missing = append(missing, "target.auth_script")
	}
	if len(c.Auth.Users) == 0 {
		missing = append(missing, "auth.users")
	}
	if c.Auth.Combinations.Type != "selected" && c.Auth.Combinations.Type != "all" {
		missing = append(missing, "auth.combinations.type")
	}
	if c.Auth.Combinations.Type == "selected" && c.Auth.Combinations.UserPairs == "" {
		missing = append(missing, "auth.combinations.user_pairs")
	}
	if c.Auth.CSRFField != "" && c.Auth.CSRFHeader != "" {
		return errors.New("csrf_field and csrf_header are mutually exclusive")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config keys: %s", strings.Join(missing, ", "))
	}
	return nil
}

// applyEnvOverrides overlays secret material from the environment onto
// auth.tokens, so session cookies/tokens need not live in the checked-in
// YAML document. The env var for user "alice" is A2CT_TOKEN_ALICE.
func (c *Config) applyEnvOverrides() {
	if c.Auth.Tokens == nil {
		c.Auth.Tokens = make(map[string]string)
	}
	for _, u := range c.Auth.Users {
		for username := range u {
			envKey := "A2CT_TOKEN_" + strings.ToUpper(username)
			if v := os.Getenv(envKey); v != "" {
				c.Auth.Tokens[username] = v
			}
		}
	}
}

// UserPairs parses auth.combinations.user_pairs ("alice:bob bob:alice") into
// (first, second) tuples.
func (c *Config) UserPairs() [][2]string {
	fields := strings.Fields(c.Auth.Combinations.UserPairs)
	pairs := make([][2]string, 0, len(fields))
	for _, f := range fields {
		first, second, ok := strings.Cut(f, ":")
		if !ok {
			continue
		}
		pairs = append(pairs, [2]string{first, second})
	}
	return pairs
}
