package source

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/halonen/skywatch/internal/models"
)

// KubernetesSource reads pod-level readings for the pods labeled
// app=<service>. CPU and memory need a metrics-server and stay absent;
// restart and instance counts come from pod status alone.
type KubernetesSource struct {
	clientset kubernetes.Interface
	namespace string
}

// NewKubernetes builds a source from a kubeconfig path (empty means
// ~/.kube/config) or, with inCluster, from the pod's service account.
func NewKubernetes(kubeconfig string, inCluster bool, namespace string) (*KubernetesSource, error) {
	var (
		cfg *rest.Config
		err error
	)
	if inCluster {
		cfg, err = rest.InClusterConfig()
	} else {
		path := kubeconfig
		if path == "" {
			path = clientcmd.RecommendedHomeFile
		}
		cfg, err = clientcmd.BuildConfigFromFlags("", path)
	}
	if err != nil {
		return nil, fmt.Errorf("kubernetes config: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("kubernetes client: %w", err)
	}
	if namespace == "" {
		namespace = "default"
	}
	return &KubernetesSource{clientset: clientset, namespace: namespace}, nil
}

func (s *KubernetesSource) Name() string { return "kubernetes" }

func (s *KubernetesSource) Read(ctx context.Context, service string) (Readings, error) {
	pods, err := s.clientset.CoreV1().Pods(s.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: "app=" + service,
	})
	if err != nil {
		return nil, fmt.Errorf("list pods for %s: %w", service, err)
	}

	restarts := 0
	running := 0
	for i := range pods.Items {
		pod := &pods.Items[i]
		if pod.Status.Phase == corev1.PodRunning {
			running++
		}
		for _, cs := range pod.Status.ContainerStatuses {
			restarts += int(cs.RestartCount)
		}
	}

	return Readings{
		models.ReadingRestartCount:  float64(restarts),
		models.ReadingInstanceCount: float64(running),
	}, nil
}
