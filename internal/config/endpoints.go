package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"k8s-dev-loadtest/internal/models"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
	"sigs.k8s.io/yaml"
)

// ErrNoEndpoints nenhum endpoint resolvido
var ErrNoEndpoints = errors.New("no endpoints configured")

// ConfigError erro fatal de configuração (aborta antes de gerar tráfego)
type ConfigError struct {
	Source string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error (%s): %v", e.Source, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// SourceKind origem dos endpoints ativos na execução
type SourceKind string

const (
	SourceInline      SourceKind = "inline"
	SourceFile        SourceKind = "file"
	SourceEnvironment SourceKind = "environment"
)

// EndpointSource fontes possíveis de endpoints.
// Precedência: URLs > URLsFile > ambiente.
type EndpointSource struct {
	URLs     string            // JSON inline (começa com '[') ou caminho de arquivo
	URLsFile string            // Override por arquivo
	Environ  map[string]string // nil = ambiente do processo
}

// endpointSchema schema do arquivo de endpoints
const endpointSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["name", "url"],
    "properties": {
      "name": {"type": "string", "minLength": 1},
      "url": {"type": "string", "minLength": 1},
      "expected": {"type": "string"},
      "namespace": {"type": "string"}
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(endpointSchema)

// envSettings fallback por variáveis de ambiente
type envSettings struct {
	Services []string `env:"LOADTEST_SERVICES" envSeparator:"," envDefault:"foo,bar"`
	Scheme   string   `env:"LOADTEST_SCHEME" envDefault:"http"`
}

// ResolveEndpoints resolve os endpoints usando exatamente uma fonte
func ResolveEndpoints(src EndpointSource) ([]models.Endpoint, SourceKind, error) {
	if strings.TrimSpace(src.URLs) != "" {
		value := strings.TrimSpace(src.URLs)
		if strings.HasPrefix(value, "[") {
			endpoints, err := ParseEndpoints([]byte(value))
			if err != nil {
				return nil, SourceInline, &ConfigError{Source: "--urls", Err: err}
			}
			return endpoints, SourceInline, nil
		}

		endpoints, err := LoadEndpointsFile(value)
		if err != nil {
			return nil, SourceFile, &ConfigError{Source: value, Err: err}
		}
		return endpoints, SourceFile, nil
	}

	if strings.TrimSpace(src.URLsFile) != "" {
		endpoints, err := LoadEndpointsFile(src.URLsFile)
		if err != nil {
			return nil, SourceFile, &ConfigError{Source: src.URLsFile, Err: err}
		}
		return endpoints, SourceFile, nil
	}

	endpoints, err := EndpointsFromEnv(src.Environ)
	if err != nil {
		return nil, SourceEnvironment, &ConfigError{Source: "environment", Err: err}
	}
	return endpoints, SourceEnvironment, nil
}

// LoadEndpointsFile carrega endpoints de um arquivo JSON ou YAML
func LoadEndpointsFile(path string) ([]models.Endpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read endpoints file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.YAMLToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
	}

	return ParseEndpoints(data)
}

// ParseEndpoints valida e decodifica um array JSON de endpoints
func ParseEndpoints(data []byte) ([]models.Endpoint, error) {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("malformed JSON: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("invalid endpoints: %s", strings.Join(msgs, "; "))
	}

	var endpoints []models.Endpoint
	if err := json.Unmarshal(data, &endpoints); err != nil {
		return nil, fmt.Errorf("malformed JSON: %w", err)
	}

	if err := validateEndpoints(endpoints); err != nil {
		return nil, err
	}
	return endpoints, nil
}

// EndpointsFromEnv monta endpoints a partir de <SERVICE>_HOST / <SERVICE>_EXPECTED
func EndpointsFromEnv(environ map[string]string) ([]models.Endpoint, error) {
	if environ == nil {
		environ = processEnviron()
	}

	var settings envSettings
	if err := env.ParseWithOptions(&settings, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	endpoints := make([]models.Endpoint, 0, len(settings.Services))
	for _, service := range settings.Services {
		service = strings.TrimSpace(service)
		if service == "" {
			continue
		}
		key := envKey(service)

		host := environ[key+"_HOST"]
		if host == "" {
			host = service + ".localhost"
		}
		target := host
		if !strings.Contains(host, "://") {
			target = fmt.Sprintf("%s://%s/", settings.Scheme, host)
		}

		expected, ok := environ[key+"_EXPECTED"]
		if !ok {
			expected = service
		}

		endpoints = append(endpoints, models.Endpoint{
			Name:     service,
			URL:      target,
			Expected: expected,
		})
	}

	if err := validateEndpoints(endpoints); err != nil {
		return nil, err
	}

	log.Debug().
		Int("count", len(endpoints)).
		Msg("Endpoints resolved from environment")

	return endpoints, nil
}

// validateEndpoints nomes únicos, URLs http(s) válidas, pelo menos um endpoint
func validateEndpoints(endpoints []models.Endpoint) error {
	if len(endpoints) == 0 {
		return ErrNoEndpoints
	}

	seen := make(map[string]bool, len(endpoints))
	for _, ep := range endpoints {
		if ep.Name == "" {
			return fmt.Errorf("endpoint with empty name")
		}
		if seen[ep.Name] {
			return fmt.Errorf("duplicate endpoint name %q", ep.Name)
		}
		seen[ep.Name] = true

		u, err := url.Parse(ep.URL)
		if err != nil {
			return fmt.Errorf("endpoint %q: invalid url: %w", ep.Name, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("endpoint %q: url must be absolute http(s), got %q", ep.Name, ep.URL)
		}
	}
	return nil
}

// envKey converte nome de serviço em prefixo de variável (foo-api -> FOO_API)
func envKey(service string) string {
	return strings.ToUpper(strings.ReplaceAll(service, "-", "_"))
}

func processEnviron() map[string]string {
	environ := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			environ[k] = v
		}
	}
	return environ
}
