package kube

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
)

func ingress(ns, name string, hosts ...string) *networkingv1.Ingress {
	ing := &networkingv1.Ingress{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: ns},
	}
	for _, h := range hosts {
		ing.Spec.Rules = append(ing.Spec.Rules, networkingv1.IngressRule{Host: h})
	}
	return ing
}

// TestListIngressHosts testa descoberta de hosts
func TestListIngressHosts(t *testing.T) {
	tlsIngress := ingress("demo", "secure")
	tlsIngress.Spec.TLS = []networkingv1.IngressTLS{{Hosts: []string{"secure.localhost"}}}

	clientset := fake.NewSimpleClientset(
		ingress("default", "foo", "foo.localhost"),
		ingress("default", "catch-all", ""),
		ingress("demo", "bar", "bar.localhost", "foo.localhost"),
		ingress("other", "ignored", "ignored.localhost"),
		tlsIngress,
	)

	hosts, err := NewClientFromInterface(clientset).ListIngressHosts(context.Background(), []string{"default", "demo", "missing"})
	require.NoError(t, err)
	assert.Equal(t, []string{"bar.localhost", "foo.localhost", "secure.localhost"}, hosts)
}

// TestListIngressHostsAllFail testa erro em todos os namespaces
func TestListIngressHostsAllFail(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	clientset.PrependReactor("list", "ingresses", func(action k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, errors.New("forbidden")
	})

	_, err := NewClientFromInterface(clientset).ListIngressHosts(context.Background(), []string{"default", "demo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forbidden")
}

// TestMergeHosts testa união de hosts
func TestMergeHosts(t *testing.T) {
	assert.Equal(t,
		[]string{"foo.localhost", "bar.localhost", "baz.localhost"},
		MergeHosts([]string{"foo.localhost", "bar.localhost"}, []string{"bar.localhost", "", "baz.localhost"}),
	)
	assert.Nil(t, MergeHosts())
}
