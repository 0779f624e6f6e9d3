package config

import (
	"os"
	"path/filepath"
	"testing"

	"k8s-dev-loadtest/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTargetsFromEndpoints testa extração de namespaces e hosts
func TestTargetsFromEndpoints(t *testing.T) {
	namespaces, hosts := TargetsFromEndpoints([]models.Endpoint{
		{Name: "foo", URL: "http://foo.localhost/", Namespace: "demo"},
		{Name: "bar", URL: "http://bar.localhost:8080/x", Namespace: "apps"},
		{Name: "foo2", URL: "http://foo.localhost/other", Namespace: "demo"},
	})

	assert.Equal(t, []string{"apps", "demo", IngressNamespace}, namespaces)
	assert.Equal(t, []string{"foo.localhost", "bar.localhost"}, hosts)
}

// TestSplitList testa listas separadas por vírgula
func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitList(" a, ,b,"))
	assert.Nil(t, SplitList(""))
}

// TestLoadEnvFiles testa carregamento de .env
func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("LOADTEST_TEST_ONLY_VAR=from-dotenv\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("LOADTEST_TEST_ONLY_VAR") })

	n, err := LoadEnvFiles([]string{path, filepath.Join(dir, ".env.local")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "from-dotenv", os.Getenv("LOADTEST_TEST_ONLY_VAR"))
}
