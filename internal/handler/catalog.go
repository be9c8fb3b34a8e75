package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront-api/internal/domain/catalog"
)

// Categories returns the full category collection as {success, data}.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	categories, err := h.catalog.ListCategories(ctx)
	if err != nil {
		zctx.From(ctx).Error("Failed to fetch categories", zap.Error(err))
		respondServerError(w, "Unable to fetch categories.", err)
		return
	}

	respondData(w, categories)
}

// listedProductPayload is the flattened listing projection on the wire.
type listedProductPayload struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Category string  `json:"category"`
}

// Products returns the filtered product listing. Absent or unparseable
// filter parameters apply no constraint.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter := parseListingFilter(r)

	products, err := h.catalog.ListProducts(ctx, filter)
	if err != nil {
		zctx.From(ctx).Error("Failed to fetch filtered products", zap.Error(err))
		respondServerError(w, "Unable to fetch products.", err)
		return
	}

	out := make([]listedProductPayload, len(products))
	for i, p := range products {
		out[i] = listedProductPayload{
			ID:       p.ID,
			Name:     p.Name,
			Price:    p.Price.InexactFloat64(),
			Category: p.Category,
		}
	}
	respondData(w, out)
}

// parseListingFilter builds the listing filter from query parameters.
// The price range is kept only when both bounds parse; a partial or invalid
// range is silently ignored.
func parseListingFilter(r *http.Request) catalog.ListingFilter {
	q := r.URL.Query()
	var f catalog.ListingFilter

	if raw := q.Get("category_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			f.CategoryID = &id
		}
	}

	minRaw, maxRaw := q.Get("price_min"), q.Get("price_max")
	if minRaw != "" && maxRaw != "" {
		min, errMin := decimal.NewFromString(minRaw)
		max, errMax := decimal.NewFromString(maxRaw)
		if errMin == nil && errMax == nil {
			f.PriceMin = &min
			f.PriceMax = &max
		}
	}

	f.Color = q.Get("color")
	f.Size = q.Get("size")
	return f
}
