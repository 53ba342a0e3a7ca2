package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError reports which stage of LoadConfig failed.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// A variable NAME_SSM_PARAM=/path makes NAME resolve from Parameter Store,
// unless NAME is already set.
const ssmParamSuffix = "_SSM_PARAM"

const localEnv = "local"

// secretLookupTimeout bounds the Parameter Store round trips of a cold start.
const secretLookupTimeout = 30 * time.Second

// Build metadata, set with -ldflags "-X pricebook/internal/config.version=...".
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo returns the linker-injected build metadata.
func NewBuildInfo() BuildInfo {
	return BuildInfo{Version: version, Commit: commit, BuildTime: buildTime}
}

// environment is the process environment, injectable for tests.
type environment struct {
	lookup func(key string) (string, bool)
	set    func(key, value string) error
	list   func() []string
}

func osEnvironment() environment {
	return environment{lookup: os.LookupEnv, set: os.Setenv, list: os.Environ}
}

// LoadConfig builds the Config from the environment. Outside APP_ENV=local,
// _SSM_PARAM pointers are resolved through provider first; provider may be
// nil when none are present. Values precedence: OS environment, then .env,
// then Parameter Store.
func LoadConfig(provider SecretProvider) (*Config, error) {
	return loadConfig(provider, osEnvironment())
}

func loadConfig(provider SecretProvider, env environment) (*Config, error) {
	time.Local = time.UTC
	_ = godotenv.Load()

	if appEnv, _ := env.lookup("APP_ENV"); appEnv != localEnv {
		if err := resolveSecrets(provider, env); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{Type: ErrParsing, Message: "failed to process environment configuration", Err: err}
	}
	cfg.Build = NewBuildInfo()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{Type: ErrValidation, Message: "configuration validation failed", Err: err}
	}
	if cfg.Catalog.Source == SourceDB && cfg.Database.URL == "" {
		return nil, &ConfigError{Type: ErrMissingEnv, Message: "DATABASE_URL is required when CATALOG_SOURCE=db"}
	}
	return &cfg, nil
}

// ResolveSecrets injects the Parameter Store values of every _SSM_PARAM
// pointer into the environment. Binaries that read os.Getenv directly call it
// before anything else. It does nothing when APP_ENV=local.
func ResolveSecrets(provider SecretProvider) error {
	env := osEnvironment()
	if appEnv, _ := env.lookup("APP_ENV"); appEnv == localEnv {
		return nil
	}
	return resolveSecrets(provider, env)
}

// secretRef binds an environment variable to its Parameter Store path.
type secretRef struct {
	name string
	path string
}

// secretRefs lists the pointers whose target variable is still unset.
func secretRefs(env environment) []secretRef {
	var refs []secretRef
	for _, entry := range env.list() {
		key, path, ok := strings.Cut(entry, "=")
		if !ok || path == "" || !strings.HasSuffix(key, ssmParamSuffix) {
			continue
		}
		name := strings.TrimSuffix(key, ssmParamSuffix)
		if _, set := env.lookup(name); set {
			continue
		}
		refs = append(refs, secretRef{name: name, path: path})
	}
	return refs
}

func resolveSecrets(provider SecretProvider, env environment) error {
	refs := secretRefs(env)
	if len(refs) == 0 {
		return nil
	}

	names := make([]string, len(refs))
	paths := make([]string, len(refs))
	for i, r := range refs {
		names[i], paths[i] = r.name, r.path
	}
	if provider == nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: "a SecretProvider is required outside local to resolve " + strings.Join(names, ", "),
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), secretLookupTimeout)
	defer cancel()
	values, err := provider.GetParametersBatch(ctx, paths)
	if err != nil {
		return &ConfigError{Type: ErrSSMResolution, Message: fmt.Sprintf("failed to resolve %d SSM parameters", len(paths)), Err: err}
	}

	var missing []string
	for _, r := range refs {
		value, ok := values[r.path]
		if !ok {
			missing = append(missing, r.name)
			continue
		}
		if err := env.set(r.name, value); err != nil {
			return &ConfigError{Type: ErrSSMResolution, Message: "failed to set " + r.name, Err: err}
		}
	}
	if len(missing) > 0 {
		return &ConfigError{Type: ErrSSMResolution, Message: "SSM parameters not found for: " + strings.Join(missing, ", ")}
	}
	return nil
}
