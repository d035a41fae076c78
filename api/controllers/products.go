package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/vitrine-commerce/vitrine-backend/api/middleware"
	"github.com/vitrine-commerce/vitrine-backend/api/responses"
	"github.com/vitrine-commerce/vitrine-backend/api/validators"
	"github.com/vitrine-commerce/vitrine-backend/internal/catalog"
	"github.com/vitrine-commerce/vitrine-backend/internal/reservation"
	"github.com/vitrine-commerce/vitrine-backend/pkg/logger"
)

const maxCategoryLen = 80

type productReader interface {
	List(ctx context.Context, filter catalog.ListFilter) ([]catalog.ProductDTO, error)
	Get(ctx context.Context, id uuid.UUID, includeInactive bool) (*catalog.ProductDTO, error)
}

type productWriter interface {
	Create(ctx context.Context, input catalog.CreateProductInput) (*catalog.ProductDTO, error)
	Update(ctx context.Context, id uuid.UUID, input catalog.UpdateProductInput) (*catalog.ProductDTO, error)
}

type availabilityReader interface {
	Available(ctx context.Context, productID, variant string, actor reservation.Actor) (*reservation.Availability, error)
}

// productDetail is a product plus what the caller may still reserve of it,
// keyed by variant name ("" for products without variants).
type productDetail struct {
	catalog.ProductDTO
	Availability map[string]reservation.Availability `json:"availability"`
}

// ProductList serves the storefront catalog. Only active products are listed.
func ProductList(svc productReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := catalog.ListFilter{
			Category:   validators.SanitizeString(r.URL.Query().Get("category"), maxCategoryLen),
			OnlyActive: true,
		}
		items, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

func ProductDetail(svc productReader, stock availabilityReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Get(r.Context(), id, false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor := middleware.ActorFromContext(r.Context())
		variants := []string{""}
		if len(product.Variants) > 0 {
			variants = variants[:0]
			for _, v := range product.Variants {
				variants = append(variants, v.Name)
			}
		}
		detail := productDetail{ProductDTO: *product, Availability: make(map[string]reservation.Availability, len(variants))}
		for _, variant := range variants {
			avail, err := stock.Available(r.Context(), id.String(), variant, actor)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			detail.Availability[variant] = *avail
		}
		responses.WriteSuccess(w, detail)
	}
}

// AdminProductList includes inactive products.
func AdminProductList(svc productReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.List(r.Context(), catalog.ListFilter{
			Category: strings.TrimSpace(r.URL.Query().Get("category")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

func AdminProductCreate(svc productWriter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input catalog.CreateProductInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, product)
	}
}

func AdminProductUpdate(svc productWriter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input catalog.UpdateProductInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}
