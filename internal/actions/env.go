package actions

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"keyrunner/internal/config"
	"keyrunner/pkg/logging"

	_ "github.com/glebarez/go-sqlite"
)

// DefaultDatabase is the connection name used when a db_* step omits "db".
const DefaultDatabase = "default"

// NewKubeClientset builds a clientset from a rest config. Tests replace it.
var NewKubeClientset = func(c *rest.Config) (kubernetes.Interface, error) {
	return kubernetes.NewForConfig(c)
}

// Environment holds the collaborator handles that action words operate on.
// Connections are opened lazily on first use and released by Close.
type Environment struct {
	ReportDir     string
	HTTPBaseURL   string
	KubeNamespace string

	httpClient *retryablehttp.Client

	mu        sync.Mutex
	dbConfigs map[string]config.DatabaseConfig
	dbs       map[string]*sql.DB
	kubeCfg   config.KubernetesConfig
	kube      kubernetes.Interface
	checks    []CheckRecord
	pinger    Pinger
}

// EnvOption customizes an Environment.
type EnvOption func(*Environment)

// WithKubeClient installs a ready clientset instead of loading a kubeconfig.
func WithKubeClient(client kubernetes.Interface) EnvOption {
	return func(e *Environment) {
		e.kube = client
	}
}

// WithDatabase installs an already open connection under name.
func WithDatabase(name string, db *sql.DB) EnvOption {
	return func(e *Environment) {
		e.dbs[name] = db
	}
}

// WithPinger replaces the ping implementation.
func WithPinger(p Pinger) EnvOption {
	return func(e *Environment) {
		e.pinger = p
	}
}

// NewEnvironment creates an Environment from the harness configuration.
func NewEnvironment(cfg config.KeyrunnerConfig, opts ...EnvOption) *Environment {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = cfg.HTTP.Retries
	httpClient.RetryWaitMin = 100 * time.Millisecond
	httpClient.RetryWaitMax = 2 * time.Second
	httpClient.Logger = nil
	if cfg.HTTP.Timeout > 0 {
		httpClient.HTTPClient.Timeout = cfg.HTTP.Timeout
	}

	namespace := cfg.Kubernetes.Namespace
	if namespace == "" {
		namespace = "default"
	}

	env := &Environment{
		ReportDir:     cfg.Report.Dir,
		HTTPBaseURL:   cfg.HTTP.BaseURL,
		KubeNamespace: namespace,
		httpClient:    httpClient,
		dbConfigs:     make(map[string]config.DatabaseConfig, len(cfg.Databases)),
		dbs:           make(map[string]*sql.DB),
		kubeCfg:       cfg.Kubernetes,
		pinger:        execPing,
	}
	for name, dbc := range cfg.Databases {
		env.dbConfigs[name] = dbc
	}
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// DB returns the named connection, opening it on first use.
func (e *Environment) DB(name string) (*sql.DB, error) {
	if name == "" {
		name = DefaultDatabase
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if db, ok := e.dbs[name]; ok {
		return db, nil
	}
	dbc, ok := e.dbConfigs[name]
	if !ok {
		return nil, fmt.Errorf("database %q is not configured", name)
	}
	driver := dbc.Driver
	if driver == "" {
		driver = "sqlite"
	}
	db, err := sql.Open(driver, dbc.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %q: %w", name, err)
	}
	e.dbs[name] = db
	logging.Debug("Actions", "Opened database %s (driver %s)", name, driver)
	return db, nil
}

// KubeClient returns the Kubernetes clientset, building it on first use.
func (e *Environment) KubeClient() (kubernetes.Interface, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.kube != nil {
		return e.kube, nil
	}

	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if e.kubeCfg.Kubeconfig != "" {
		loadingRules.ExplicitPath = e.kubeCfg.Kubeconfig
	}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: e.kubeCfg.Context}
	restConfig, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
	}
	restConfig.Timeout = 15 * time.Second

	client, err := NewKubeClientset(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes clientset: %w", err)
	}
	e.kube = client
	return client, nil
}

// HTTPClient returns the retrying client used by http_request.
func (e *Environment) HTTPClient() *retryablehttp.Client {
	return e.httpClient
}

// Close releases every open database connection.
func (e *Environment) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	for name, db := range e.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database %s: %w", name, err))
		}
		delete(e.dbs, name)
	}
	e.httpClient.HTTPClient.CloseIdleConnections()
	return errors.Join(errs...)
}
