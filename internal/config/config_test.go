package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "a2ct.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const validYAML = `
target:
  target_url: https://target.example
  target_domain: target.example
  path_to_db: /tmp/a2ct.db
  reset_script: ./reset.sh
  auth_script: ./auth.sh
auth:
  users:
    - alice: pw1
    - bob: pw2
  combinations:
    type: selected
    user_pairs: "alice:bob bob:alice"
`

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, validYAML)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://target.example", cfg.Target.TargetURL)
	assert.Equal(t, DefaultInterThreshold, cfg.Options.InterThresholdValidating)
}

func TestLoad_MissingRequiredKeyFails(t *testing.T) {
	path := writeConfig(t, `
target:
  target_url: https://target.example
auth:
  users:
    - alice: pw1
  combinations:
    type: all
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_CSRFFieldAndHeaderMutuallyExclusive(t *testing.T) {
	path := writeConfig(t, validYAML+"\n  csrf_field: tokenCSRF\n  csrf_header: X-CSRF-Token\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestUserPairs_ParsesSpaceSeparatedPairs(t *testing.T) {
	cfg := &Config{Auth: Auth{Combinations: Combinations{UserPairs: "alice:bob bob:alice alice:public"}}}
	pairs := cfg.UserPairs()
	assert.Equal(t, [][2]string{{"alice", "bob"}, {"bob", "alice"}, {"alice", "public"}}, pairs)
}

func TestApplyEnvOverrides_OverlaysTokenFromEnv(t *testing.T) {
	t.Setenv("A2CT_TOKEN_ALICE", "Cookie session=fresh")
	cfg := &Config{Auth: Auth{Users: []UserCredential{{"alice": "pw"}}}}
	cfg.applyEnvOverrides()
	assert.Equal(t, "Cookie session=fresh", cfg.Auth.Tokens["alice"])
}
