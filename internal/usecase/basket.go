package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"cstore-agent/internal/domain"
)

// productCategories are the catalog categories offered by voice.
var productCategories = []string{"food service", "salty snacks", "hot drinks", "cold dispensed"}

const (
	relatedResults = 5
	relatedFeature = "alexa"
	relatedUserID  = "1"
	relatedFilter  = "cstore"
)

// loadCatalog fetches every voice category, fills attrs.Products if the
// session has no catalog yet, and returns the entity list that teaches the
// platform the product names.
func (s *Skill) loadCatalog(ctx context.Context, attrs *domain.SessionAttributes) (domain.EntityListItem, error) {
	var products []domain.Product
	for _, category := range productCategories {
		ps, err := s.deps.Catalog.ProductsByCategory(ctx, category)
		if err != nil {
			return domain.EntityListItem{}, newError(ErrorUpstream, "catalog_error", err)
		}
		products = append(products, ps...)
	}

	if attrs.Products == nil {
		attrs.Products = make(map[string]domain.CatalogProduct, len(products))
		for _, p := range products {
			attrs.Products[p.ID] = domain.CatalogProduct{Name: p.Name, Price: p.Price, Image: p.Image, URL: p.URL}
		}
	}

	item := domain.EntityListItem{Name: entityTypeProduct, Values: make([]domain.Entity, 0, len(products))}
	for _, p := range products {
		item.Values = append(item.Values, domain.Entity{
			ID:   p.ID,
			Name: domain.EntityValueAndSynonyms{Value: p.Name, Synonyms: p.Aliases},
		})
	}
	return item, nil
}

// AddToBasket adds one unit of productID, creating the basket and its id on
// first use.
func (s *Skill) AddToBasket(attrs *domain.SessionAttributes, productID string) {
	if attrs.Basket == nil {
		attrs.Basket = make(map[string]domain.BasketItem)
		attrs.BasketID = s.newBasketID()
	}
	item := attrs.Basket[productID]
	item.Quantity++
	attrs.Basket[productID] = item
}

// Total sums quantity times catalog price over the basket.
func Total(attrs domain.SessionAttributes) (float64, error) {
	var total float64
	for id, item := range attrs.Basket {
		p, ok := attrs.Products[id]
		if !ok {
			return 0, newError(ErrorInternal, "unknown_basket_product", fmt.Errorf("usecase: product %q is not in the catalog", id))
		}
		total += p.Price * float64(item.Quantity)
	}
	return total, nil
}

// Recommend returns the product suggested alongside productID. Results are
// memoized per product for the rest of the session.
func (s *Skill) Recommend(ctx context.Context, attrs *domain.SessionAttributes, productID string) (domain.RecommendedProduct, error) {
	if rec, ok := attrs.RecommendedProducts[productID]; ok {
		return rec, nil
	}

	recs, err := s.deps.Catalog.Related(ctx, domain.RelatedQuery{
		ProductID:  productID,
		NumResults: relatedResults,
		Feature:    relatedFeature,
		UserID:     relatedUserID,
		Filter:     relatedFilter,
	})
	if err != nil {
		return domain.RecommendedProduct{}, newError(ErrorUpstream, "recommendation_error", err)
	}

	var rec domain.RecommendedProduct
	if len(recs) > 0 {
		rec = recs[0].Product
	} else {
		slog.Error("could not retrieve a recommendation, picking a random product", "productId", productID)
		rec, err = s.randomProduct(*attrs)
		if err != nil {
			return domain.RecommendedProduct{}, err
		}
	}

	if attrs.RecommendedProducts == nil {
		attrs.RecommendedProducts = make(map[string]domain.RecommendedProduct)
	}
	attrs.RecommendedProducts[productID] = rec
	return rec, nil
}

func (s *Skill) randomProduct(attrs domain.SessionAttributes) (domain.RecommendedProduct, error) {
	if len(attrs.Products) == 0 {
		return domain.RecommendedProduct{}, newError(ErrorInternal, "empty_catalog", nil)
	}
	ids := make([]string, 0, len(attrs.Products))
	for id := range attrs.Products {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	id := ids[s.pick(len(ids))]
	p := attrs.Products[id]
	return domain.RecommendedProduct{ID: id, Name: p.Name, Price: p.Price}, nil
}

// matchedProductID resolves the ProductName slot to a catalog id.
func matchedProductID(req domain.RequestEnvelope) (string, error) {
	id, ok := req.Request.ResolvedID(slotProductName)
	if !ok {
		return "", newError(ErrorInvalidInput, "product_not_resolved", fmt.Errorf("usecase: no catalog match for %q", req.Request.SlotValue(slotProductName)))
	}
	return id, nil
}

func productByID(attrs domain.SessionAttributes, id string) (domain.CatalogProduct, error) {
	p, ok := attrs.Products[id]
	if !ok {
		return domain.CatalogProduct{}, newError(ErrorInternal, "unknown_product", fmt.Errorf("usecase: product %q is not in the catalog", id))
	}
	return p, nil
}

// buildOrder turns the basket into an order payload, capturing prices now.
func buildOrder(attrs domain.SessionAttributes, user domain.UserDetails) (domain.Order, error) {
	total, err := Total(attrs)
	if err != nil {
		return domain.Order{}, err
	}
	username, first, last := orderIdentity(user)

	ids := make([]string, 0, len(attrs.Basket))
	for id := range attrs.Basket {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	order := domain.Order{
		Items:        make([]domain.OrderItem, 0, len(ids)),
		Total:        total,
		DeliveryType: "COLLECTION",
		Username:     username,
		BillingAddress: domain.BillingAddress{
			FirstName: first,
			LastName:  last,
		},
		Channel: "alexa",
	}
	for _, id := range ids {
		p, err := productByID(attrs, id)
		if err != nil {
			return domain.Order{}, err
		}
		order.Items = append(order.Items, domain.OrderItem{
			ProductID: id,
			Quantity:  attrs.Basket[id].Quantity,
			Price:     p.Price,
		})
	}
	return order, nil
}
