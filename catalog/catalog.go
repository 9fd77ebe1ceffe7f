// Package catalog loads embedding models, rerankers and test corpora from
// YAML files.
package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/poiesic/embedeval/core"
	"github.com/poiesic/embedeval/storage"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

// ModelSpec describes an embedding model in a catalog file.
type ModelSpec struct {
	Name                 string `yaml:"name"`
	Provider             string `yaml:"provider"`
	ProviderURL          string `yaml:"providerUrl"`
	Dimensions           int    `yaml:"dimensions"`
	QueryPrefix          string `yaml:"queryPrefix"`
	DocumentPrefix       string `yaml:"documentPrefix"`
	MatryoshkaDimensions []int  `yaml:"matryoshkaDimensions"`
}

// RerankerSpec describes a reranker in a catalog file.
type RerankerSpec struct {
	Name        string `yaml:"name"`
	Provider    string `yaml:"provider"`
	ProviderURL string `yaml:"providerUrl"`
}

// Catalog is the content of a catalog file.
type Catalog struct {
	Models    []ModelSpec    `yaml:"models"`
	Rerankers []RerankerSpec `yaml:"rerankers"`
}

// Parse decodes a catalog and validates every entry. Unknown keys are
// rejected.
func Parse(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for _, m := range c.Models {
		if err := core.ValidateEmbeddingModel(m.model()); err != nil {
			return nil, fmt.Errorf("model %q: %w", m.Name, err)
		}
	}
	for _, r := range c.Rerankers {
		if err := core.ValidateRerankerModel(r.reranker()); err != nil {
			return nil, fmt.Errorf("reranker %q: %w", r.Name, err)
		}
	}
	return &c, nil
}

// Load reads and parses a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(err)
	}
	return c
}

func (m ModelSpec) model() *core.EmbeddingModel {
	return &core.EmbeddingModel{
		Name:                 m.Name,
		Provider:             m.Provider,
		ProviderURL:          m.ProviderURL,
		Dimensions:           m.Dimensions,
		QueryPrefix:          m.QueryPrefix,
		DocumentPrefix:       m.DocumentPrefix,
		MatryoshkaDimensions: m.MatryoshkaDimensions,
	}
}

func (r RerankerSpec) reranker() *core.RerankerModel {
	return &core.RerankerModel{Name: r.Name, Provider: r.Provider, ProviderURL: r.ProviderURL}
}

// SeedResult counts the catalog entries written by Seed.
type SeedResult struct {
	ModelsAdded      int
	ModelsSkipped    int
	RerankersAdded   int
	RerankersSkipped int
}

// Seed adds every catalog entry whose name is not stored yet. Existing
// entries are left untouched.
func Seed(ctx context.Context, models storage.ModelRepository, c *Catalog) (*SeedResult, error) {
	res := &SeedResult{}
	for _, spec := range c.Models {
		_, err := models.FindEmbeddingModel(ctx, spec.Name)
		if err == nil {
			res.ModelsSkipped++
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		if _, err := models.AddEmbeddingModels(ctx, spec.model()); err != nil {
			return nil, fmt.Errorf("add model %q: %w", spec.Name, err)
		}
		res.ModelsAdded++
	}

	for _, spec := range c.Rerankers {
		_, err := models.FindRerankerModel(ctx, spec.Name)
		if err == nil {
			res.RerankersSkipped++
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		if _, err := models.AddRerankerModels(ctx, spec.reranker()); err != nil {
			return nil, fmt.Errorf("add reranker %q: %w", spec.Name, err)
		}
		res.RerankersAdded++
	}
	return res, nil
}
