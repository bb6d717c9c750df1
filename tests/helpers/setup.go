package helpers

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/mlregistry/internal/metadata"
	"github.com/inferloop/mlregistry/internal/registry"
	"github.com/inferloop/mlregistry/pkg/constants"
)

// TestEnvironment bundles a throwaway registry root and a quiet logger for
// tests that exercise the full facade.
type TestEnvironment struct {
	RootPath string
	Logger   *logrus.Logger
}

// NewTestEnvironment creates an isolated environment under t.TempDir.
func NewTestEnvironment(t *testing.T) *TestEnvironment {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return &TestEnvironment{
		RootPath: t.TempDir(),
		Logger:   logger,
	}
}

// NewRegistry builds a filesystem-backed registry over the environment's
// root, laid out the same way the server does it.
func (env *TestEnvironment) NewRegistry(t *testing.T) *registry.Registry {
	t.Helper()

	store, err := metadata.NewStore(&metadata.StoreConfig{
		BasePath: filepath.Join(env.RootPath, constants.DefaultMetricsDir),
	}, env.Logger)
	if err != nil {
		t.Fatalf("create metadata store: %v", err)
	}

	reg, err := registry.NewRegistry(&registry.Config{RootPath: env.RootPath}, store, env.Logger)
	if err != nil {
		t.Fatalf("create registry: %v", err)
	}

	return reg
}
