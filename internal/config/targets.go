package config

import (
	"net/url"
	"os"
	"sort"
	"strings"

	"k8s-dev-loadtest/internal/models"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// IngressNamespace namespace do ingress controller, sempre monitorado
const IngressNamespace = "ingress-nginx"

// Defaults do collector quando nada é informado
var (
	DefaultNamespaces = []string{"default", IngressNamespace}
	DefaultHosts      = []string{"foo.localhost", "bar.localhost"}
)

// TargetsFromEndpoints extrai namespaces e hosts dos endpoints.
// Namespaces ordenados e únicos (ingress-nginx incluído), hosts na ordem da configuração.
func TargetsFromEndpoints(endpoints []models.Endpoint) (namespaces, hosts []string) {
	nsSet := map[string]bool{IngressNamespace: true}
	hostSet := map[string]bool{}

	for _, ep := range endpoints {
		if ep.Namespace != "" {
			nsSet[ep.Namespace] = true
		}
		u, err := url.Parse(ep.URL)
		if err != nil || u.Hostname() == "" {
			continue
		}
		// label host do ingress não carrega porta
		host := u.Hostname()
		if !hostSet[host] {
			hostSet[host] = true
			hosts = append(hosts, host)
		}
	}

	for ns := range nsSet {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)

	return namespaces, hosts
}

// SplitList separa uma lista separada por vírgulas, ignorando vazios
func SplitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoadEnvFiles carrega os arquivos .env existentes, retorna quantos foram carregados
func LoadEnvFiles(files []string) (int, error) {
	existing := make([]string, 0, len(files))
	for _, file := range files {
		if fileExists(file) {
			existing = append(existing, file)
		}
	}

	if len(existing) == 0 {
		return 0, nil
	}

	if err := godotenv.Load(existing...); err != nil {
		return 0, err
	}

	log.Debug().
		Strs("files", existing).
		Msg("Environment files loaded")

	return len(existing), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
