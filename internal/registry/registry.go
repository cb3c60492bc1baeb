// Package registry manages the catalog of deployed prediction models and the
// formatter strategies that turn source rows into model input values.
package registry

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/verity-ml/predict-cli/internal/model"
	"github.com/verity-ml/predict-cli/internal/store"
)

// Registry resolves model definitions against the store.
type Registry struct {
	store store.Store
}

// New creates a Registry backed by the given store.
func New(st store.Store) *Registry {
	return &Registry{store: st}
}

// SeedFromFile reads a YAML list of model definitions and upserts each one.
// Seeding is idempotent; definitions are matched by name.
func (r *Registry) SeedFromFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, eris.Wrap(err, "registry: read models seed")
	}

	var models []model.AIModel
	if err := yaml.Unmarshal(data, &models); err != nil {
		return 0, eris.Wrap(err, "registry: unmarshal models seed")
	}

	for _, m := range models {
		if m.Name == "" || m.DeploymentID == "" {
			return 0, eris.Errorf("registry: model seed entry missing name or deployment_id")
		}
		if _, err := r.store.InsertModel(ctx, m); err != nil {
			return 0, err
		}
	}

	zap.L().Info("seeded model registry", zap.Int("models", len(models)))
	return len(models), nil
}

// Resolve returns the named model, or the default model when name is empty.
// A run cannot proceed without a model, so both misses are errors.
func (r *Registry) Resolve(ctx context.Context, name string) (*model.AIModel, error) {
	if name != "" {
		m, err := r.store.GetModel(ctx, name)
		if err != nil {
			return nil, eris.Wrapf(err, "registry: resolve model %q", name)
		}
		return m, nil
	}

	m, err := r.store.GetDefaultModel(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "registry: no default model configured")
	}
	return m, nil
}

// List returns every registered model.
func (r *Registry) List(ctx context.Context) ([]model.AIModel, error) {
	return r.store.ListModels(ctx)
}
