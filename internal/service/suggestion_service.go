package service

import (
	"context"
	"fmt"
	"sort"

	"catalog-service/internal/models"
	"catalog-service/internal/store"
	"catalog-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Suggestion weights.
const (
	keywordWeight    = 3
	collectionWeight = 2
	priceWeight      = 1

	// DefaultSuggestionLimit is used when no limit is given.
	DefaultSuggestionLimit = 5
	poolFactor             = 3
)

// Candidates priced within ±30% of the reference get the price point.
var (
	priceBandLow  = decimal.RequireFromString("0.7")
	priceBandHigh = decimal.RequireFromString("1.3")
)

// priceBand returns the inclusive bounds, truncated to whole cents.
func priceBand(base int64) (low, high int64) {
	b := decimal.NewFromInt(base)
	return b.Mul(priceBandLow).IntPart(), b.Mul(priceBandHigh).IntPart()
}

// SuggestionStore is what SuggestionService needs from storage.
type SuggestionStore interface {
	GetProductBySKU(ctx context.Context, sku string) (*models.Product, error)
	SearchProducts(ctx context.Context, f store.ProductFilter) ([]models.Product, error)
	GetKeywords(ctx context.Context, productID int64) ([]string, error)
	GetKeywordsByProductIDs(ctx context.Context, ids []int64) (map[int64][]string, error)
	GetPrimaryCollection(ctx context.Context, productID int64) (*models.Collection, error)
	ListCollectionProductIDs(ctx context.Context, collectionID int64) ([]int64, error)
}

// Suggestion is a scored candidate.
type Suggestion struct {
	Product models.Product `json:"product"`
	Score   int            `json:"score"`
}

// SuggestionService ranks products that could replace or accompany a
// reference product.
type SuggestionService struct {
	store  SuggestionStore
	logger *zap.Logger
}

// NewSuggestionService creates a new suggestion service
func NewSuggestionService(store SuggestionStore) *SuggestionService {
	return &SuggestionService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// reference is the product suggestions are computed for.
type reference struct {
	product  *models.Product
	keywords []string
	primary  *models.Collection
}

// FindAlternatives returns published, available products sharing at least
// one keyword with sku. With sameCollection the pool is restricted to the
// reference's primary collection, when it has one. An unknown SKU or one
// without keywords yields no suggestions.
func (s *SuggestionService) FindAlternatives(ctx context.Context, sku string, limit int, sameCollection bool) ([]Suggestion, error) {
	ctx, span := util.StartSpan(ctx, "SuggestionService.FindAlternatives")
	defer span.End()

	util.SuggestionRequestsTotal.WithLabelValues("alternatives").Inc()

	ref, err := s.reference(ctx, sku)
	if err != nil || ref == nil || len(ref.keywords) == 0 {
		return []Suggestion{}, err
	}

	filter := s.pool(ref, limit)
	filter.Keywords = ref.keywords
	if sameCollection && ref.primary != nil {
		filter.CollectionID = ref.primary.ID
	}
	return s.rank(ctx, ref, filter, limit)
}

// FindSimilar is FindAlternatives where membership of the reference's
// primary collection is required rather than scored. Keywords narrow the
// pool only when the reference has any.
func (s *SuggestionService) FindSimilar(ctx context.Context, sku string, limit int) ([]Suggestion, error) {
	ctx, span := util.StartSpan(ctx, "SuggestionService.FindSimilar")
	defer span.End()

	util.SuggestionRequestsTotal.WithLabelValues("similar").Inc()

	ref, err := s.reference(ctx, sku)
	if err != nil || ref == nil {
		return []Suggestion{}, err
	}

	filter := s.pool(ref, limit)
	filter.Keywords = ref.keywords
	if ref.primary != nil {
		filter.CollectionID = ref.primary.ID
	}
	return s.rank(ctx, ref, filter, limit)
}

func (s *SuggestionService) reference(ctx context.Context, sku string) (*reference, error) {
	product, err := s.store.GetProductBySKU(ctx, sku)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if product == nil {
		return nil, nil
	}

	keywords, err := s.store.GetKeywords(ctx, product.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get keywords: %w", err)
	}
	primary, err := s.store.GetPrimaryCollection(ctx, product.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get primary collection: %w", err)
	}

	return &reference{product: product, keywords: keywords, primary: primary}, nil
}

func (s *SuggestionService) pool(ref *reference, limit int) store.ProductFilter {
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}
	return store.ProductFilter{
		ExcludeSKU:    ref.product.SKU,
		OnlyPublished: true,
		OnlyAvailable: true,
		Limit:         limit * poolFactor,
	}
}

func (s *SuggestionService) rank(ctx context.Context, ref *reference, filter store.ProductFilter, limit int) ([]Suggestion, error) {
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}

	candidates, err := s.store.SearchProducts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}
	if len(candidates) == 0 {
		return []Suggestion{}, nil
	}

	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	keywords, err := s.store.GetKeywordsByProductIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate keywords: %w", err)
	}

	members := map[int64]bool{}
	if ref.primary != nil {
		memberIDs, err := s.store.ListCollectionProductIDs(ctx, ref.primary.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load collection members: %w", err)
		}
		for _, id := range memberIDs {
			members[id] = true
		}
	}

	refKeywords := make(map[string]bool, len(ref.keywords))
	for _, k := range ref.keywords {
		refKeywords[k] = true
	}
	low, high := priceBand(ref.product.BasePriceQ)

	out := make([]Suggestion, 0, len(candidates))
	for _, c := range candidates {
		score := 0
		for _, k := range keywords[c.ID] {
			if refKeywords[k] {
				score += keywordWeight
			}
		}
		if members[c.ID] {
			score += collectionWeight
		}
		if c.BasePriceQ >= low && c.BasePriceQ <= high {
			score += priceWeight
		}
		out = append(out, Suggestion{Product: c, Score: score})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
