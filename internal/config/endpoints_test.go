package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"k8s-dev-loadtest/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// TestResolvePrecedence testa a precedência --urls > --urls-file > ambiente
func TestResolvePrecedence(t *testing.T) {
	file := writeFile(t, "urls.json", `[{"name":"from-file","url":"http://file.localhost"}]`)
	environ := map[string]string{"FOO_HOST": "foo.example"}

	t.Run("inline wins over file and env", func(t *testing.T) {
		endpoints, kind, err := ResolveEndpoints(EndpointSource{
			URLs:     `[{"name":"x","url":"http://x"}]`,
			URLsFile: file,
			Environ:  environ,
		})
		require.NoError(t, err)
		assert.Equal(t, SourceInline, kind)
		assert.Equal(t, []models.Endpoint{{Name: "x", URL: "http://x"}}, endpoints)
	})

	t.Run("urls as path", func(t *testing.T) {
		endpoints, kind, err := ResolveEndpoints(EndpointSource{URLs: file, Environ: environ})
		require.NoError(t, err)
		assert.Equal(t, SourceFile, kind)
		assert.Equal(t, "from-file", endpoints[0].Name)
	})

	t.Run("file wins over env", func(t *testing.T) {
		endpoints, kind, err := ResolveEndpoints(EndpointSource{URLsFile: file, Environ: environ})
		require.NoError(t, err)
		assert.Equal(t, SourceFile, kind)
		require.Len(t, endpoints, 1)
		assert.Equal(t, "from-file", endpoints[0].Name)
	})

	t.Run("env fallback", func(t *testing.T) {
		endpoints, kind, err := ResolveEndpoints(EndpointSource{Environ: environ})
		require.NoError(t, err)
		assert.Equal(t, SourceEnvironment, kind)
		require.Len(t, endpoints, 2)
		assert.Equal(t, "http://foo.example/", endpoints[0].URL)
		assert.Equal(t, "http://bar.localhost/", endpoints[1].URL)
	})
}

// TestEndpointsFromEnv testa o fallback por variáveis de ambiente
func TestEndpointsFromEnv(t *testing.T) {
	endpoints, err := EndpointsFromEnv(map[string]string{
		"LOADTEST_SERVICES": "api-gw, echo",
		"LOADTEST_SCHEME":   "https",
		"API_GW_HOST":       "gw.localhost:8443",
		"API_GW_EXPECTED":   "",
		"ECHO_HOST":         "http://127.0.0.1:5678/hello",
	})
	require.NoError(t, err)

	assert.Equal(t, []models.Endpoint{
		{Name: "api-gw", URL: "https://gw.localhost:8443/", Expected: ""},
		{Name: "echo", URL: "http://127.0.0.1:5678/hello", Expected: "echo"},
	}, endpoints)
}

// TestEndpointsFromEnvDefaults testa os defaults sem variáveis
func TestEndpointsFromEnvDefaults(t *testing.T) {
	endpoints, err := EndpointsFromEnv(map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, []models.Endpoint{
		{Name: "foo", URL: "http://foo.localhost/", Expected: "foo"},
		{Name: "bar", URL: "http://bar.localhost/", Expected: "bar"},
	}, endpoints)
}

// TestParseEndpointsErrors testa erros de configuração
func TestParseEndpointsErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"malformed json", `[{"name":"x",`},
		{"missing url", `[{"name":"x"}]`},
		{"not an array", `{"name":"x","url":"http://x"}`},
		{"duplicate names", `[{"name":"x","url":"http://a"},{"name":"x","url":"http://b"}]`},
		{"relative url", `[{"name":"x","url":"/path"}]`},
		{"wrong type", `[{"name":1,"url":"http://x"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ResolveEndpoints(EndpointSource{URLs: tt.input})
			require.Error(t, err)

			var cfgErr *ConfigError
			assert.True(t, errors.As(err, &cfgErr))
		})
	}
}

// TestEmptyArrayIsNoEndpoints testa array vazio
func TestEmptyArrayIsNoEndpoints(t *testing.T) {
	_, _, err := ResolveEndpoints(EndpointSource{URLs: "[]"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoEndpoints))
}

// TestEmptyServicesIsNoEndpoints testa LOADTEST_SERVICES vazio
func TestEmptyServicesIsNoEndpoints(t *testing.T) {
	_, _, err := ResolveEndpoints(EndpointSource{Environ: map[string]string{"LOADTEST_SERVICES": " , "}})
	assert.True(t, errors.Is(err, ErrNoEndpoints))
}

// TestLoadEndpointsYAML testa arquivos YAML
func TestLoadEndpointsYAML(t *testing.T) {
	path := writeFile(t, "urls.yaml", `
- name: foo
  url: http://foo.localhost/
  expected: foo
  namespace: demo
- name: bar
  url: http://bar.localhost/
`)

	endpoints, err := LoadEndpointsFile(path)
	require.NoError(t, err)
	require.Len(t, endpoints, 2)
	assert.Equal(t, models.Endpoint{Name: "foo", URL: "http://foo.localhost/", Expected: "foo", Namespace: "demo"}, endpoints[0])
}

// TestLoadEndpointsMissingFile testa arquivo inexistente
func TestLoadEndpointsMissingFile(t *testing.T) {
	_, _, err := ResolveEndpoints(EndpointSource{URLsFile: filepath.Join(t.TempDir(), "nope.json")})
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Error(), "nope.json")
}
