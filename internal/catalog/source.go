package catalog

import (
	"context"
	"time"

	"github.com/couchcryptid/hazard-proximity-service/internal/adapter/socrata"
	"github.com/couchcryptid/hazard-proximity-service/internal/adapter/tabular"
	"github.com/couchcryptid/hazard-proximity-service/internal/domain"
)

// Source produces the ordered hazard collections for a catalog load.
type Source interface {
	Load(ctx context.Context) ([]domain.Collection, error)
	Name() string
}

// DirSource loads <category>.csv or .xlsx tables from a directory.
type DirSource struct {
	Dir      string
	Registry *domain.Registry
}

func (s DirSource) Name() string { return "dir:" + s.Dir }

func (s DirSource) Load(_ context.Context) ([]domain.Collection, error) {
	return tabular.LoadDir(s.Dir, s.Registry)
}

// SocrataSource downloads the datasets from the open data portal. The date
// window is recomputed on every load.
type SocrataSource struct {
	Client    *socrata.Client
	Datasets  []socrata.Dataset
	StartDate string
	EndDate   string
	Lookback  time.Duration
}

func (s SocrataSource) Name() string { return "socrata" }

func (s SocrataSource) Load(ctx context.Context) ([]domain.Collection, error) {
	w, err := socrata.NewWindow(s.StartDate, s.EndDate, s.Lookback)
	if err != nil {
		return nil, err
	}
	return s.Client.FetchAll(ctx, s.Datasets, w)
}

// StaticSource serves fixed collections.
type StaticSource []domain.Collection

func (s StaticSource) Name() string { return "static" }

func (s StaticSource) Load(_ context.Context) ([]domain.Collection, error) {
	return s, nil
}
