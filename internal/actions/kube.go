package actions

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"keyrunner/internal/registry"
	"keyrunner/internal/template"
)

// managedByLabel marks objects created by kube_* actions.
const managedByLabel = "app.kubernetes.io/managed-by"

func kubePack(env *Environment) []registry.Descriptor {
	nsParam := param("namespace", false, "namespace, default from configuration")
	nameParam := param("name", true, "object name")
	return []registry.Descriptor{
		{
			Keyword:      "kube_create_configmap",
			Category:     CategoryKube,
			Description:  "Create a ConfigMap",
			Params:       []registry.ParamSpec{nameParam, nsParam, param("data", false, "string key/value pairs")},
			Compensation: "kube_delete_configmap",
			Handler:      env.kubeCreateConfigMap,
		},
		{
			Keyword:     "kube_delete_configmap",
			Category:    CategoryKube,
			Description: "Delete a ConfigMap; a missing object is not an error",
			Params:      []registry.ParamSpec{nameParam, nsParam},
			Handler:     env.kubeDeleteConfigMap,
		},
		{
			Keyword:     "kube_get_configmap",
			Category:    CategoryKube,
			Description: "Return a ConfigMap's data, or one key when key is set",
			Params:      []registry.ParamSpec{nameParam, nsParam, param("key", false, "single data key to return")},
			Handler:     env.kubeGetConfigMap,
		},
		{
			Keyword:     "kube_count_pods",
			Category:    CategoryKube,
			Description: "Count pods matching a label selector",
			Params:      []registry.ParamSpec{nsParam, param("selector", false, "label selector")},
			Handler:     env.kubeCountPods,
		},
		{
			Keyword:     "kube_pod_phase",
			Category:    CategoryKube,
			Description: "Return a pod's phase",
			Params:      []registry.ParamSpec{nameParam, nsParam},
			Handler:     env.kubePodPhase,
		},
	}
}

func (e *Environment) namespace(params map[string]any) string {
	if ns, _ := stringParam(params, "namespace", false); ns != "" {
		return ns
	}
	return e.KubeNamespace
}

func (e *Environment) kubeCreateConfigMap(ctx context.Context, params map[string]any) (any, error) {
	client, err := e.KubeClient()
	if err != nil {
		return nil, err
	}
	name, err := requiredString(params, "name")
	if err != nil {
		return nil, err
	}
	raw, err := mapParam(params, "data")
	if err != nil {
		return nil, err
	}
	data := make(map[string]string, len(raw))
	for k, v := range raw {
		data[k] = template.Stringify(v)
	}

	ns := e.namespace(params)
	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: ns,
			Labels:    map[string]string{managedByLabel: "keyrunner"},
		},
		Data: data,
	}
	created, err := client.CoreV1().ConfigMaps(ns).Create(ctx, cm, metav1.CreateOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create configmap %s/%s: %w", ns, name, err)
	}
	return created.Name, nil
}

func (e *Environment) kubeDeleteConfigMap(ctx context.Context, params map[string]any) (any, error) {
	client, err := e.KubeClient()
	if err != nil {
		return nil, err
	}
	name, err := requiredString(params, "name")
	if err != nil {
		return nil, err
	}
	ns := e.namespace(params)
	err = client.CoreV1().ConfigMaps(ns).Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return nil, fmt.Errorf("failed to delete configmap %s/%s: %w", ns, name, err)
	}
	return true, nil
}

func (e *Environment) kubeGetConfigMap(ctx context.Context, params map[string]any) (any, error) {
	client, err := e.KubeClient()
	if err != nil {
		return nil, err
	}
	name, err := requiredString(params, "name")
	if err != nil {
		return nil, err
	}
	ns := e.namespace(params)
	cm, err := client.CoreV1().ConfigMaps(ns).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get configmap %s/%s: %w", ns, name, err)
	}

	if key, _ := stringParam(params, "key", false); key != "" {
		v, ok := cm.Data[key]
		if !ok {
			return nil, fmt.Errorf("configmap %s/%s has no key %q", ns, name, key)
		}
		return v, nil
	}
	out := make(map[string]any, len(cm.Data))
	for k, v := range cm.Data {
		out[k] = v
	}
	return out, nil
}

func (e *Environment) kubeCountPods(ctx context.Context, params map[string]any) (any, error) {
	client, err := e.KubeClient()
	if err != nil {
		return nil, err
	}
	selector, _ := stringParam(params, "selector", false)
	ns := e.namespace(params)
	pods, err := client.CoreV1().Pods(ns).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods in %s: %w", ns, err)
	}
	return len(pods.Items), nil
}

func (e *Environment) kubePodPhase(ctx context.Context, params map[string]any) (any, error) {
	client, err := e.KubeClient()
	if err != nil {
		return nil, err
	}
	name, err := requiredString(params, "name")
	if err != nil {
		return nil, err
	}
	ns := e.namespace(params)
	pod, err := client.CoreV1().Pods(ns).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get pod %s/%s: %w", ns, name, err)
	}
	return string(pod.Status.Phase), nil
}
