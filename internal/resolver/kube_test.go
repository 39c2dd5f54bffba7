package resolver

import (
	"context"
	"testing"

	corev1 "k8s.io/api/core/v1"
	discoveryv1 "k8s.io/api/discovery/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/mcluseau/kingress/internal/endpoint"
)

func boolPtr(b bool) *bool    { return &b }
func strPtr(s string) *string { return &s }
func int32Ptr(i int32) *int32 { return &i }

func TestKubeResolveClusterIP(t *testing.T) {
	client := fake.NewSimpleClientset(&corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "default"},
		Spec: corev1.ServiceSpec{
			ClusterIPs: []string{"10.0.0.5"},
			Ports:      []corev1.ServicePort{{Name: "http", Port: 80}},
		},
	})

	k := &Kube{Client: client}
	ep := endpoint.Endpoint{Namespace: "default", Service: "web", Port: endpoint.Number(80)}
	addrs, err := k.Resolve(context.Background(), ep)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(addrs) != 1 || addrs[0].String() != "10.0.0.5:80" {
		t.Fatalf("got %v, want one addr 10.0.0.5:80", addrs)
	}
}

func TestKubeResolveHeadlessUsesEndpointSlices(t *testing.T) {
	client := fake.NewSimpleClientset(
		&corev1.Service{
			ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "default"},
			Spec: corev1.ServiceSpec{
				ClusterIP:  "None",
				ClusterIPs: []string{"None"},
				Ports:      []corev1.ServicePort{{Name: "http", Port: 80}},
			},
		},
		&discoveryv1.EndpointSlice{
			ObjectMeta: metav1.ObjectMeta{
				Name:      "web-abcde",
				Namespace: "default",
				Labels:    map[string]string{"kubernetes.io/service-name": "web"},
			},
			Ports: []discoveryv1.EndpointPort{{Name: strPtr("http"), Port: int32Ptr(8080)}},
			Endpoints: []discoveryv1.Endpoint{
				{
					Addresses:  []string{"10.1.0.1"},
					Conditions: discoveryv1.EndpointConditions{Ready: boolPtr(true)},
				},
				{
					Addresses:  []string{"10.1.0.2"},
					Conditions: discoveryv1.EndpointConditions{Ready: boolPtr(false)},
				},
			},
		},
	)

	k := &Kube{Client: client}
	ep := endpoint.Endpoint{Namespace: "default", Service: "web", Port: endpoint.Name("http")}
	addrs, err := k.Resolve(context.Background(), ep)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(addrs) != 1 || addrs[0].String() != "10.1.0.1:8080" {
		t.Fatalf("got %v, want only the ready endpoint 10.1.0.1:8080", addrs)
	}
}

func TestKubeResolveHeadlessNumericPortDiffersFromTargetPort(t *testing.T) {
	client := fake.NewSimpleClientset(
		&corev1.Service{
			ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "default"},
			Spec: corev1.ServiceSpec{
				ClusterIP:  "None",
				ClusterIPs: []string{"None"},
				Ports:      []corev1.ServicePort{{Name: "http", Port: 80}},
			},
		},
		&discoveryv1.EndpointSlice{
			ObjectMeta: metav1.ObjectMeta{
				Name:      "web-abcde",
				Namespace: "default",
				Labels:    map[string]string{"kubernetes.io/service-name": "web"},
			},
			// The slice's port number is the pod's targetPort (8080), not
			// the Service's port number (80); only the port name matches.
			Ports: []discoveryv1.EndpointPort{{Name: strPtr("http"), Port: int32Ptr(8080)}},
			Endpoints: []discoveryv1.Endpoint{
				{
					Addresses:  []string{"10.1.0.1"},
					Conditions: discoveryv1.EndpointConditions{Ready: boolPtr(true)},
				},
			},
		},
	)

	k := &Kube{Client: client}
	ep := endpoint.Endpoint{Namespace: "default", Service: "web", Port: endpoint.Number(80)}
	addrs, err := k.Resolve(context.Background(), ep)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(addrs) != 1 || addrs[0].String() != "10.1.0.1:8080" {
		t.Fatalf("got %v, want the endpoint dialed on its target port 10.1.0.1:8080", addrs)
	}
}

func TestKubeResolveUnknownNamedPortIsError(t *testing.T) {
	client := fake.NewSimpleClientset(&corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "default"},
		Spec: corev1.ServiceSpec{
			ClusterIPs: []string{"10.0.0.5"},
			Ports:      []corev1.ServicePort{{Name: "http", Port: 80}},
		},
	})

	k := &Kube{Client: client}
	ep := endpoint.Endpoint{Namespace: "default", Service: "web", Port: endpoint.Name("missing")}
	_, err := k.Resolve(context.Background(), ep)
	if err != ErrPortNotFound {
		t.Fatalf("got %v, want ErrPortNotFound", err)
	}
}
