package kube

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
)

// Client wrapper para client-go com o contexto selecionado
type Client struct {
	Clientset kubernetes.Interface
	context   string
}

// NewClient cria um client a partir do kubeconfig (vazio = regras padrão / KUBECONFIG)
// e de um contexto opcional (vazio = current-context)
func NewClient(kubeconfig, contextName string, timeout time.Duration) (*Client, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		loadingRules.ExplicitPath = kubeconfig
	}
	configOverrides := &clientcmd.ConfigOverrides{
		CurrentContext: contextName,
	}

	kubeConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		loadingRules,
		configOverrides,
	)

	config, err := kubeConfig.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create client config for context %q: %w", contextName, err)
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	config.Timeout = timeout

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	log.Debug().
		Str("context", contextName).
		Str("server", config.Host).
		Msg("K8s client created successfully")

	return &Client{
		Clientset: clientset,
		context:   contextName,
	}, nil
}

// NewClientFromInterface cria um client a partir de um clientset existente
func NewClientFromInterface(clientset kubernetes.Interface) *Client {
	return &Client{Clientset: clientset}
}

// ListIngressHosts lista os hosts das regras de Ingress (networking/v1) nos namespaces.
// Retorna hosts únicos e ordenados. Falha em um namespace não interrompe os demais;
// erro só é retornado quando todos falham.
func (k *Client) ListIngressHosts(ctx context.Context, namespaces []string) ([]string, error) {
	seen := make(map[string]bool)
	var errs []error

	for _, ns := range namespaces {
		list, err := k.Clientset.NetworkingV1().Ingresses(ns).List(ctx, metav1.ListOptions{})
		if err != nil {
			log.Warn().
				Err(err).
				Str("namespace", ns).
				Msg("Failed to list ingresses")
			errs = append(errs, fmt.Errorf("failed to list ingresses in namespace %s: %w", ns, err))
			continue
		}

		for _, ing := range list.Items {
			for _, rule := range ing.Spec.Rules {
				if rule.Host != "" {
					seen[rule.Host] = true
				}
			}
			for _, tls := range ing.Spec.TLS {
				for _, host := range tls.Hosts {
					if host != "" {
						seen[host] = true
					}
				}
			}
		}

		log.Debug().
			Str("namespace", ns).
			Int("ingresses", len(list.Items)).
			Msg("Ingresses listed")
	}

	if len(namespaces) > 0 && len(errs) == len(namespaces) {
		return nil, errors.Join(errs...)
	}

	hosts := make([]string, 0, len(seen))
	for host := range seen {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)

	return hosts, nil
}

// MergeHosts une listas de hosts preservando a ordem da primeira ocorrência
func MergeHosts(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, h := range list {
			if h != "" && !seen[h] {
				seen[h] = true
				out = append(out, h)
			}
		}
	}
	return out
}
