package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/vitrine-commerce/vitrine-backend/pkg/db"
	"github.com/vitrine-commerce/vitrine-backend/pkg/db/models"
	pkgerrors "github.com/vitrine-commerce/vitrine-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// VariantInput describes a sellable option. Stock is owned by the inventory
// sync and cannot be set here.
type VariantInput struct {
	Name       string  `json:"name" validate:"required,max=60"`
	PriceCents *int64  `json:"price_cents,omitempty" validate:"omitempty,gte=0"`
	Image      *string `json:"image,omitempty" validate:"omitempty,url"`
}

type CreateProductInput struct {
	Name        string         `json:"name" validate:"required,max=200"`
	Category    string         `json:"category" validate:"required,max=80"`
	Description *string        `json:"description,omitempty"`
	PriceCents  int64          `json:"price_cents" validate:"gte=0"`
	Images      []string       `json:"images" validate:"dive,url"`
	IsActive    bool           `json:"is_active"`
	Variants    []VariantInput `json:"variants" validate:"dive"`
}

type UpdateProductInput struct {
	Name        *string         `json:"name,omitempty" validate:"omitempty,max=200"`
	Category    *string         `json:"category,omitempty" validate:"omitempty,max=80"`
	Description *string         `json:"description,omitempty"`
	PriceCents  *int64          `json:"price_cents,omitempty" validate:"omitempty,gte=0"`
	Images      *[]string       `json:"images,omitempty"`
	IsActive    *bool           `json:"is_active,omitempty"`
	Variants    *[]VariantInput `json:"variants,omitempty"`
}

type Service struct {
	tx   txRunner
	repo *Repository
}

func NewService(tx txRunner, repo *Repository) (*Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &Service{tx: tx, repo: repo}, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]ProductDTO, error) {
	filter.Category = strings.TrimSpace(filter.Category)
	products, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	out := make([]ProductDTO, 0, len(products))
	for _, p := range products {
		out = append(out, NewProductDTO(p))
	}
	return out, nil
}

// Get returns a product. Inactive products are hidden unless includeInactive.
func (s *Service) Get(ctx context.Context, id uuid.UUID, includeInactive bool) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.IsActive && !includeInactive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	dto := NewProductDTO(*product)
	return &dto, nil
}

func (s *Service) Create(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	if err := validateVariantNames(input.Variants); err != nil {
		return nil, err
	}
	product := &models.Product{
		Name:        strings.TrimSpace(input.Name),
		Category:    strings.TrimSpace(input.Category),
		Description: input.Description,
		PriceCents:  input.PriceCents,
		Images:      pq.StringArray(input.Images),
		IsActive:    input.IsActive,
		Variants:    buildVariants(input.Variants),
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return s.Get(ctx, product.ID, true)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	if input.Variants != nil {
		if err := validateVariantNames(*input.Variants); err != nil {
			return nil, err
		}
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := repo.FindByID(ctx, id)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return err
		}
		applyUpdate(product, input)
		if err := repo.UpdateFields(ctx, product); err != nil {
			return err
		}
		if input.Variants != nil {
			return repo.ReplaceVariants(ctx, id, buildVariants(*input.Variants))
		}
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	return s.Get(ctx, id, true)
}

func applyUpdate(product *models.Product, input UpdateProductInput) {
	if input.Name != nil {
		product.Name = strings.TrimSpace(*input.Name)
	}
	if input.Category != nil {
		product.Category = strings.TrimSpace(*input.Category)
	}
	if input.Description != nil {
		product.Description = input.Description
	}
	if input.PriceCents != nil {
		product.PriceCents = *input.PriceCents
	}
	if input.Images != nil {
		product.Images = pq.StringArray(append([]string(nil), *input.Images...))
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}
}

func buildVariants(inputs []VariantInput) []models.ProductVariant {
	if len(inputs) == 0 {
		return nil
	}
	out := make([]models.ProductVariant, 0, len(inputs))
	for _, v := range inputs {
		out = append(out, models.ProductVariant{
			Name:       strings.TrimSpace(v.Name),
			PriceCents: v.PriceCents,
			Image:      v.Image,
		})
	}
	return out
}

func validateVariantNames(inputs []VariantInput) error {
	seen := make(map[string]struct{}, len(inputs))
	for _, v := range inputs {
		name := strings.TrimSpace(v.Name)
		if name == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "variant name required")
		}
		if strings.Contains(name, "|") {
			return pkgerrors.New(pkgerrors.CodeValidation, "variant name cannot contain |")
		}
		if _, dup := seen[name]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, "duplicate variant name").
				WithDetails(map[string]any{"variant": name})
		}
		seen[name] = struct{}{}
	}
	return nil
}
