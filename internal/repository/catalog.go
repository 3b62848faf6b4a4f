package repository

import "github.com/BazaarDev/bazaar_api/internal/models"

// Topology names the relations the catalog engine works across and their
// probe order. It is constructor input rather than package constants so
// ordering and membership stay testable and swappable.
type Topology struct {
	// ProductRelations in canonical-then-legacy precedence order.
	ProductRelations []OwnerColumns
	// WriteTargets in priority order: the relation enforcing numeric
	// ownership first, the string-owner fallback second.
	WriteTargets []WriteTarget
	// VendorCandidates in precedence order: core table first, views later.
	VendorCandidates []VendorCandidate
	// ProfileRelation receives the idempotent owner-profile upsert.
	ProfileRelation string
}

// ProductRelationNames returns the product relations in precedence order.
func (t Topology) ProductRelationNames() []string {
	names := make([]string, len(t.ProductRelations))
	for i, r := range t.ProductRelations {
		names[i] = r.Relation
	}
	return names
}

// DefaultTopology is the production relation set: the vendor-supplied
// vendor_products relation (numeric ownership) ahead of the admin-curated
// shop_products relation (string ownership, legacy seller_id alternate).
func DefaultTopology() Topology {
	return Topology{
		ProductRelations: []OwnerColumns{
			{
				Relation:      "vendor_products",
				NumericColumn: models.ColVendorID,
				StringColumn:  models.ColSellerKey,
				AltColumn:     models.ColSellerID,
			},
			{
				Relation:      "shop_products",
				NumericColumn: "",
				StringColumn:  models.ColSellerKey,
				AltColumn:     models.ColSellerID,
			},
		},
		WriteTargets: []WriteTarget{
			{
				Relation:           "vendor_products",
				OwnerNumericColumn: models.ColVendorID,
				OwnerStringColumn:  "",
			},
			{
				Relation:           "shop_products",
				OwnerNumericColumn: "",
				OwnerStringColumn:  models.ColSellerKey,
			},
		},
		VendorCandidates: []VendorCandidate{
			{Relation: "vendors", IDColumn: "id", UserIDColumn: "user_id", VendorNoColumn: "vendor_no"},
			{Relation: "vendor_accounts", IDColumn: "id", UserIDColumn: "user_id", VendorNoColumn: "vendor_no"},
			{Relation: "seller_profiles", IDColumn: "vendor_id", UserIDColumn: "", VendorNoColumn: "vendor_id"},
		},
		ProfileRelation: "seller_profiles",
	}
}
