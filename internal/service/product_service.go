package service

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/BazaarDev/bazaar_api/internal/models"
	"github.com/BazaarDev/bazaar_api/internal/normalize"
	"github.com/BazaarDev/bazaar_api/internal/repository"
	"github.com/BazaarDev/bazaar_api/internal/store"
	"github.com/BazaarDev/bazaar_api/internal/utils"
)

// ProductService orchestrates the catalog engine per public operation:
// normalize fields, compute the price, resolve the owner reference, then hand
// off to the adaptive writer or the locator. It holds no per-request state
// and never caches entities.
type ProductService struct {
	store    *store.Store
	locator  *repository.Locator
	writer   *repository.AdaptiveWriter
	resolver *repository.OwnerResolver
	topo     repository.Topology
	media    *MediaService
	pageSize int
}

// NewProductService constructs a ProductService. media may be nil (media
// removal then degrades to a no-op).
func NewProductService(
	st *store.Store,
	locator *repository.Locator,
	writer *repository.AdaptiveWriter,
	resolver *repository.OwnerResolver,
	topo repository.Topology,
	media *MediaService,
	searchPageSize int,
) *ProductService {
	if searchPageSize <= 0 {
		searchPageSize = 100
	}
	return &ProductService{
		store:    st,
		locator:  locator,
		writer:   writer,
		resolver: resolver,
		topo:     topo,
		media:    media,
		pageSize: searchPageSize,
	}
}

// ProductInput is the loosely-typed mutation payload. Pricing and
// payment-method fields arrive as strings, numbers, arrays, or JSON-encoded
// strings depending on the client; the field normalizer sorts them out.
type ProductInput struct {
	Name           *string         `json:"name"`
	Price          any             `json:"price"`
	OriginalPrice  any             `json:"original_price"`
	SalePercent    any             `json:"sale_percent"`
	Stock          any             `json:"stock"`
	PaymentMethods any             `json:"payment_methods"`
	Image          *string         `json:"image"`
	Thumbnails     []string        `json:"thumbnails"`
	Description    *string         `json:"description"`
	Specifications *string         `json:"specifications"`
	ShippingInfo   *string         `json:"shipping_info"`
	FAQs           json.RawMessage `json:"faqs"`
}

// Create persists a new product for the given owner key. The owner reference
// is attached in its strongest available form: a strictly numeric key is used
// directly, otherwise the resolver is consulted, otherwise the string form is
// kept and the write targets the string-owner relation.
func (s *ProductService) Create(ctx context.Context, ownerKey string, in *ProductInput) (*models.Product, error) {
	if in == nil || in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, utils.ErrValidation
	}
	if ownerKey == "" {
		return nil, utils.ErrValidation
	}

	p := s.projectInput(in)
	p.ID = uuid.New().String()
	p.Price = normalize.FinalPrice(p.OriginalPrice, p.DiscountPercent, absoluteFallback(in))

	p.Owner = s.attachOwner(ctx, ownerKey)

	targets := s.topo.WriteTargets
	if !p.Owner.IsNumeric() {
		// No resolvable numeric owner: skip the relation that enforces
		// numeric ownership and go straight to the string-owner fallback.
		targets = targets[len(targets)-1:]
	}

	row, relation, err := s.writer.Write(ctx, repository.WriteOp{
		Targets:  targets,
		Payload:  p.ToRow(),
		OwnerKey: ownerKey,
	})
	if err != nil {
		return nil, err
	}
	out := models.FromRow(relation, row)
	return &out, nil
}

// GetByID reads a product, probing relations in canonical-then-legacy order.
func (s *ProductService) GetByID(ctx context.Context, id string) (*models.Product, error) {
	row, relation, err := s.locator.FindByID(ctx, id, s.topo.ProductRelationNames())
	if row == nil {
		if err != nil {
			log.Debug().Err(err).Str("id", id).Msg("product probe errors")
		}
		return nil, utils.ErrProductNotFound
	}
	p := models.FromRow(relation, row)
	return &p, nil
}

// ListByOwner returns all products belonging to an owner key, with
// diagnostics describing which relations and columns were probed. Zero
// products is an empty result, never an error.
func (s *ProductService) ListByOwner(ctx context.Context, ownerKey string) ([]models.Product, repository.Diagnostics, error) {
	if ownerKey == "" {
		return nil, nil, utils.ErrValidation
	}
	owner := ownerRefFromKey(ownerKey)
	rows, relation, diags := s.locator.FindByOwner(ctx, owner, s.topo.ProductRelations)

	out := make([]models.Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.FromRow(relation, row))
	}
	return out, diags, nil
}

// Update merges the supplied fields over the existing entity and writes it
// back to the relation the row was found in; updates never relocate a row.
func (s *ProductService) Update(ctx context.Context, actor models.Actor, id string, in *ProductInput) (*models.Product, error) {
	if in == nil {
		return nil, utils.ErrValidation
	}
	row, relation, err := s.locator.FindByID(ctx, id, s.topo.ProductRelationNames())
	if row == nil {
		if err != nil {
			log.Debug().Err(err).Str("id", id).Msg("product probe errors")
		}
		return nil, utils.ErrProductNotFound
	}

	existing := models.FromRow(relation, row)
	if err := authorize(actor, existing.Owner); err != nil {
		return nil, err
	}

	merged, repriced := mergeInput(existing, in)
	if repriced {
		merged.Price = normalize.FinalPrice(merged.OriginalPrice, merged.DiscountPercent, absoluteFallback(in))
	}

	patch := merged.ToRow()
	// Identity and ownership are immutable on update.
	delete(patch, models.ColID)
	delete(patch, models.ColVendorID)
	delete(patch, models.ColSellerKey)
	delete(patch, models.ColSellerID)
	clearEmptied(patch, merged, in)

	written, _, err := s.writer.Write(ctx, repository.WriteOp{
		Targets: []repository.WriteTarget{s.targetFor(relation)},
		Payload: patch,
		Update:  true,
		ID:      row[models.ColID],
	})
	if err != nil {
		return nil, err
	}
	out := models.FromRow(relation, written)
	return &out, nil
}

// Delete removes a product and, best-effort, its media. Media failures are
// logged and never fail the delete.
func (s *ProductService) Delete(ctx context.Context, actor models.Actor, id string) error {
	row, relation, err := s.locator.FindByID(ctx, id, s.topo.ProductRelationNames())
	if row == nil {
		if err != nil {
			log.Debug().Err(err).Str("id", id).Msg("product probe errors")
		}
		return utils.ErrProductNotFound
	}

	p := models.FromRow(relation, row)
	if err := authorize(actor, p.Owner); err != nil {
		return err
	}

	s.removeMedia(ctx, p)

	_, err = s.store.Delete(ctx, relation, store.Filter{}.Eq(models.ColID, row[models.ColID]))
	return err
}

// Search fetches a bounded page from every candidate relation concurrently,
// filters client-side across the candidate text fields, and merges results
// deduplicated by relation-qualified key. A field a row does not have is not
// a mismatch.
func (s *ProductService) Search(ctx context.Context, query string) ([]models.Product, error) {
	relations := s.topo.ProductRelationNames()
	pages := make([][]store.Row, len(relations))

	g, gctx := errgroup.WithContext(ctx)
	for i, rel := range relations {
		i, rel := i, rel
		g.Go(func() error {
			rows, err := s.store.SelectLimit(gctx, rel, store.Filter{}, s.pageSize)
			if err != nil {
				// A relation that cannot be read contributes nothing; the
				// other relation may still be productive.
				log.Warn().Err(err).Str("relation", rel).Msg("search page fetch failed")
				return nil
			}
			pages[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []models.Product
	for i, rel := range relations {
		for _, row := range pages[i] {
			if !matchesQuery(row, query) {
				continue
			}
			key := rel + "/" + rowKey(row)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, models.FromRow(rel, row))
		}
	}
	return out, nil
}

// searchFields are the candidate text fields inspected by Search.
var searchFields = []string{
	models.ColName,
	models.ColDescription,
	models.ColSpecifications,
}

func matchesQuery(row store.Row, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	for _, field := range searchFields {
		v, ok := row[field]
		if !ok || v == nil {
			continue
		}
		if str, ok := v.(string); ok && strings.Contains(strings.ToLower(str), q) {
			return true
		}
	}
	return false
}

func rowKey(row store.Row) string {
	switch v := row[models.ColID].(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return uuid.New().String()
	}
}

// authorize permits administrators and actors whose identity equals either
// form of the owner reference. It leaks nothing about the true owner.
func authorize(actor models.Actor, owner models.OwnerRef) error {
	if actor.IsAdmin() {
		return nil
	}
	if owner.Matches(actor.ID) {
		return nil
	}
	return utils.ErrForbidden
}

// clearEmptied writes explicit NULLs for fields the caller supplied that
// normalized to empty. ToRow omits zero-valued fields, so a cleared discount
// or descriptive field must be nulled in the patch or the stale column value
// survives the update.
func clearEmptied(patch store.Row, merged models.Product, in *ProductInput) {
	if in.SalePercent != nil && merged.DiscountPercent == nil {
		patch[models.ColDiscount] = nil
	}
	if in.PaymentMethods != nil && len(merged.PaymentMethods) == 0 {
		patch[models.ColPaymentMethods] = nil
	}
	if in.Image != nil && merged.Image == "" {
		patch[models.ColImage] = nil
	}
	if in.Thumbnails != nil && len(merged.Thumbnails) == 0 {
		patch[models.ColThumbnails] = nil
	}
	if in.Description != nil && merged.Description == "" {
		patch[models.ColDescription] = nil
	}
	if in.Specifications != nil && merged.Specifications == "" {
		patch[models.ColSpecifications] = nil
	}
	if in.ShippingInfo != nil && merged.ShippingInfo == "" {
		patch[models.ColShippingInfo] = nil
	}
	if in.FAQs != nil && len(merged.FAQs) == 0 {
		patch[models.ColFAQs] = nil
	}
}

// attachOwner upgrades an owner key into its strongest reference form.
func (s *ProductService) attachOwner(ctx context.Context, ownerKey string) models.OwnerRef {
	if normalize.NumericString(ownerKey) {
		if id, err := strconv.ParseInt(ownerKey, 10, 64); err == nil {
			return models.OwnerRef{NumericID: &id}
		}
	}
	if id, ok := s.resolver.ResolveNumericID(ctx, ownerKey); ok {
		return models.OwnerRef{NumericID: &id}
	}
	return models.OwnerRef{Key: ownerKey}
}

func (s *ProductService) targetFor(relation string) repository.WriteTarget {
	for _, t := range s.topo.WriteTargets {
		if t.Relation == relation {
			return t
		}
	}
	return repository.WriteTarget{Relation: relation}
}

func (s *ProductService) removeMedia(ctx context.Context, p models.Product) {
	if s.media == nil {
		return
	}
	paths := make([]string, 0, len(p.Thumbnails)+1)
	if p.Image != "" {
		paths = append(paths, s.media.KeyFromURL(p.Image))
	}
	for _, t := range p.Thumbnails {
		paths = append(paths, s.media.KeyFromURL(t))
	}
	if len(paths) == 0 {
		return
	}
	if err := s.media.Remove(ctx, paths); err != nil {
		log.Warn().Err(err).Str("product_id", p.ID).Msg("media removal failed")
	}
}

// projectInput builds a Product from a mutation payload, running every loose
// field through the normalizer.
func (s *ProductService) projectInput(in *ProductInput) models.Product {
	p := models.Product{}
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if v, ok := normalize.Number(in.OriginalPrice); ok {
		p.OriginalPrice = v
	} else if v, ok := normalize.Number(in.Price); ok {
		p.OriginalPrice = v
	}
	p.DiscountPercent = normalize.DiscountPercent(in.SalePercent)
	if v, ok := normalize.Number(in.Stock); ok && v >= 0 {
		p.Stock = int64(v)
	}
	if in.PaymentMethods != nil {
		p.PaymentMethods = normalize.PaymentMethods(in.PaymentMethods)
	}
	if in.Image != nil {
		p.Image = *in.Image
	}
	p.Thumbnails = in.Thumbnails
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Specifications != nil {
		p.Specifications = *in.Specifications
	}
	if in.ShippingInfo != nil {
		p.ShippingInfo = *in.ShippingInfo
	}
	p.FAQs = in.FAQs
	return p
}

// mergeInput lays the supplied fields over the existing entity. Absent fields
// never overwrite. The second return reports whether any pricing field
// changed, requiring the computed price to be rederived.
func mergeInput(existing models.Product, in *ProductInput) (models.Product, bool) {
	merged := existing
	repriced := false

	if in.Name != nil && strings.TrimSpace(*in.Name) != "" {
		merged.Name = strings.TrimSpace(*in.Name)
	}
	if v, ok := normalize.Number(in.OriginalPrice); ok {
		merged.OriginalPrice = v
		repriced = true
	}
	if in.SalePercent != nil {
		merged.DiscountPercent = normalize.DiscountPercent(in.SalePercent)
		repriced = true
	}
	if _, ok := normalize.Number(in.Price); ok {
		repriced = true
	}
	if v, ok := normalize.Number(in.Stock); ok && v >= 0 {
		merged.Stock = int64(v)
	}
	if in.PaymentMethods != nil {
		merged.PaymentMethods = normalize.PaymentMethods(in.PaymentMethods)
	}
	if in.Image != nil {
		merged.Image = *in.Image
	}
	if in.Thumbnails != nil {
		merged.Thumbnails = in.Thumbnails
	}
	if in.Description != nil {
		merged.Description = *in.Description
	}
	if in.Specifications != nil {
		merged.Specifications = *in.Specifications
	}
	if in.ShippingInfo != nil {
		merged.ShippingInfo = *in.ShippingInfo
	}
	if in.FAQs != nil {
		merged.FAQs = in.FAQs
	}
	return merged, repriced
}

// absoluteFallback extracts the legacy fixed sale price, used only when no
// percentage discount is present.
func absoluteFallback(in *ProductInput) *float64 {
	if v, ok := normalize.Number(in.Price); ok {
		return &v
	}
	return nil
}

// ownerRefFromKey builds the reference forms worth probing for a raw key.
func ownerRefFromKey(key string) models.OwnerRef {
	ref := models.OwnerRef{Key: key}
	if normalize.NumericString(key) {
		if id, err := strconv.ParseInt(key, 10, 64); err == nil {
			ref.NumericID = &id
		}
	}
	return ref
}
