package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/websitelelo/websitelelo/internal/models"
	"github.com/websitelelo/websitelelo/internal/repository"
)

//go:embed plans.yaml
var defaultPlans []byte

type seedPlan struct {
	Name         string            `yaml:"name" json:"name"`
	Price        string            `yaml:"price" json:"price"`
	DeliveryTime string            `yaml:"deliveryTime" json:"deliveryTime"`
	Features     []string          `yaml:"features" json:"features"`
	IsActive     *bool             `yaml:"isActive" json:"isActive,omitempty"`
	MatrixValues map[string]string `yaml:"matrixValues" json:"matrixValues,omitempty"`
}

// parsePlans turns a YAML plan catalogue into create requests.
func parsePlans(data []byte) ([]map[string]json.RawMessage, error) {
	var plans []seedPlan
	if err := yaml.Unmarshal(data, &plans); err != nil {
		return nil, fmt.Errorf("parse plan catalogue: %w", err)
	}
	if len(plans) == 0 {
		return nil, fmt.Errorf("plan catalogue is empty")
	}

	out := make([]map[string]json.RawMessage, 0, len(plans))
	for _, p := range plans {
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
		out = append(out, fields)
	}
	return out, nil
}

type planRepo interface {
	List(ctx context.Context, opts repository.ListOptions) ([]models.Plan, error)
	Create(ctx context.Context, fields map[string]json.RawMessage) (*models.Plan, error)
	Delete(ctx context.Context, id string) error
}

// seedPlans creates every plan; with replace set, existing plans are
// removed first.
func seedPlans(ctx context.Context, repo planRepo, plans []map[string]json.RawMessage, replace bool) ([]*models.Plan, error) {
	if replace {
		existing, err := repo.List(ctx, repository.ListOptions{})
		if err != nil {
			return nil, err
		}
		for _, p := range existing {
			if err := repo.Delete(ctx, p.ID); err != nil {
				return nil, fmt.Errorf("remove plan %s: %w", p.ID, err)
			}
		}
	}

	created := make([]*models.Plan, 0, len(plans))
	for _, fields := range plans {
		p, err := repo.Create(ctx, fields)
		if err != nil {
			return created, err
		}
		created = append(created, p)
	}
	return created, nil
}
