package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `
apiVersion: relay.avarelay.io/v1
kind: Relay
metadata:
  name: test-relay
spec:
  server:
    port: 8080
  rules:
    - name: api
      prefix: /api
      origin: http://upstream:9000
`

func TestLoadConfigFromReader(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfigFromReader(strings.NewReader(minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, APIVersion, cfg.APIVersion)
	assert.Equal(t, KindRelay, cfg.Kind)
	assert.Equal(t, "test-relay", cfg.Metadata.Name)
	assert.Equal(t, 8080, cfg.Spec.Server.Port)
	require.Len(t, cfg.Spec.Rules, 1)
	assert.Equal(t, "api", cfg.Spec.Rules[0].Name)
	assert.Equal(t, "/api", cfg.Spec.Rules[0].Prefix)
	assert.Equal(t, "http://upstream:9000", cfg.Spec.Rules[0].Origin)
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalConfig), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "test-relay", cfg.Metadata.Name)
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	t.Parallel()

	_, err := LoadConfigFromReader(strings.NewReader("spec: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestEnvSubstitution(t *testing.T) {
	t.Setenv("RELAY_TEST_ORIGIN", "http://real-upstream:8443")

	doc := `
apiVersion: relay.avarelay.io/v1
kind: Relay
metadata:
  name: ${RELAY_TEST_NAME:-fallback-name}
spec:
  server:
    port: 8080
  rules:
    - name: api
      prefix: /api
      origin: ${RELAY_TEST_ORIGIN}
`

	cfg, err := LoadConfigFromReader(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, "fallback-name", cfg.Metadata.Name,
		"unset variable must fall back to its default")
	assert.Equal(t, "http://real-upstream:8443", cfg.Spec.Rules[0].Origin)
}

func TestEnvSubstitutionEscapedDollar(t *testing.T) {
	t.Parallel()

	doc := `
apiVersion: relay.avarelay.io/v1
kind: Relay
metadata:
  name: "name-with-$${literal}"
spec:
  server: {}
  rules: []
`

	cfg, err := LoadConfigFromReader(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "name-with-${literal}", cfg.Metadata.Name)
}

func TestDurationParsing(t *testing.T) {
	t.Parallel()

	doc := `
apiVersion: relay.avarelay.io/v1
kind: Relay
metadata:
  name: durations
spec:
  requestTimeout: 45s
  server:
    readTimeout: 1m30s
  rules:
    - name: api
      prefix: /api
      origin: http://upstream:9000
      timeout: 500ms
`

	cfg, err := LoadConfigFromReader(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, "45s", cfg.Spec.RequestTimeout.Duration().String())
	assert.Equal(t, "1m30s", cfg.Spec.Server.ReadTimeout.Duration().String())
	assert.Equal(t, "500ms", cfg.Spec.Rules[0].Timeout.Duration().String())
}

func TestDurationInvalid(t *testing.T) {
	t.Parallel()

	_, err := LoadConfigFromReader(strings.NewReader(`
apiVersion: relay.avarelay.io/v1
kind: Relay
metadata:
  name: bad
spec:
  requestTimeout: soon
  rules: []
`))
	require.Error(t, err)
}

func TestSpecDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfigFromReader(strings.NewReader(minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, DefaultRequestTimeout, cfg.Spec.EffectiveRequestTimeout())
	assert.Equal(t, 8080, cfg.Spec.Server.EffectivePort())
	assert.Equal(t, "structured", string(cfg.Spec.ResponseEncoding()))
}
