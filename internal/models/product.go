package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/BazaarDev/bazaar_api/internal/normalize"
	"github.com/BazaarDev/bazaar_api/internal/store"
)

// OwnerRef identifies the seller that owns a product. The catalog carries two
// encodings: a strict numeric vendor id (foreign-key safe, used by the newer
// relation) and an opaque string key (used by the legacy relation when no
// numeric id could be resolved). Exactly one form is set on a persisted row.
type OwnerRef struct {
	NumericID *int64 `json:"vendorId,omitempty"`
	Key       string `json:"sellerKey,omitempty"`
}

// IsNumeric reports whether the reference carries a strict numeric id.
func (o OwnerRef) IsNumeric() bool {
	return o.NumericID != nil
}

// Matches reports whether actorID equals either form of the reference.
func (o OwnerRef) Matches(actorID string) bool {
	if actorID == "" {
		return false
	}
	if o.NumericID != nil && strconv.FormatInt(*o.NumericID, 10) == actorID {
		return true
	}
	return o.Key != "" && o.Key == actorID
}

// Product is the typed view of a catalog row. Rows live in relations with
// inconsistent column sets, so Product is only materialized at the service
// boundary via FromRow and converted back with ToRow.
type Product struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	OriginalPrice   float64         `json:"originalPrice"`
	Price           float64         `json:"price"`
	DiscountPercent *float64        `json:"discountPercent,omitempty"`
	Stock           int64           `json:"stock"`
	Owner           OwnerRef        `json:"owner"`
	PaymentMethods  []string        `json:"paymentMethods"`
	Image           string          `json:"image,omitempty"`
	Thumbnails      []string        `json:"thumbnails,omitempty"`
	Description     string          `json:"description,omitempty"`
	Specifications  string          `json:"specifications,omitempty"`
	ShippingInfo    string          `json:"shippingInfo,omitempty"`
	FAQs            json.RawMessage `json:"faqs,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`

	// Relation records where the row was found so updates and deletes target
	// the same relation. Never serialized to clients.
	Relation string `json:"-"`
}

// Product relation column names shared by the engine. The two product
// relations agree on these; everything else varies per relation.
const (
	ColID             = "id"
	ColName           = "name"
	ColPrice          = "price"
	ColOriginalPrice  = "original_price"
	ColDiscount       = "discount"
	ColStock          = "stock"
	ColVendorID       = "vendor_id"
	ColSellerKey      = "seller_key"
	ColSellerID       = "seller_id"
	ColPaymentMethods = "payment_methods"
	ColImage          = "image"
	ColThumbnails     = "thumbnails"
	ColDescription    = "description"
	ColSpecifications = "specifications"
	ColShippingInfo   = "shipping_info"
	ColFAQs           = "faqs"
	ColCreatedAt      = "created_at"
)

// FromRow projects a dynamically-shaped row into a Product. Absent columns
// leave zero values; no error is possible.
func FromRow(relation string, r store.Row) Product {
	p := Product{Relation: relation}

	p.ID = asString(r[ColID])
	p.Name = asString(r[ColName])
	if v, ok := normalize.Number(r[ColPrice]); ok {
		p.Price = v
	}
	if v, ok := normalize.Number(r[ColOriginalPrice]); ok {
		p.OriginalPrice = v
	}
	p.DiscountPercent = normalize.DiscountPercent(r[ColDiscount])
	if v, ok := normalize.Number(r[ColStock]); ok && v >= 0 {
		p.Stock = int64(v)
	}

	if v, ok := normalize.Number(r[ColVendorID]); ok {
		id := int64(v)
		p.Owner.NumericID = &id
	} else if key := asString(r[ColSellerKey]); key != "" {
		p.Owner.Key = key
	} else if key := asString(r[ColSellerID]); key != "" {
		p.Owner.Key = key
	}

	p.PaymentMethods = normalize.PaymentMethods(r[ColPaymentMethods])
	p.Image = asString(r[ColImage])
	p.Thumbnails = asStringSlice(r[ColThumbnails])
	p.Description = asString(r[ColDescription])
	p.Specifications = asString(r[ColSpecifications])
	p.ShippingInfo = asString(r[ColShippingInfo])
	if s := asString(r[ColFAQs]); s != "" {
		p.FAQs = json.RawMessage(s)
	}
	if t, ok := r[ColCreatedAt].(time.Time); ok {
		p.CreatedAt = t
	}

	return p
}

// ToRow converts a Product into a full write payload with canonical column
// names. The adaptive writer strips columns the target relation turns out not
// to have, so the payload always starts complete.
func (p Product) ToRow() store.Row {
	r := store.Row{
		ColName:          p.Name,
		ColPrice:         p.Price,
		ColOriginalPrice: p.OriginalPrice,
		ColStock:         p.Stock,
	}
	if p.ID != "" {
		r[ColID] = p.ID
	}
	if p.DiscountPercent != nil {
		r[ColDiscount] = *p.DiscountPercent
	}
	if p.Owner.NumericID != nil {
		r[ColVendorID] = *p.Owner.NumericID
	} else if p.Owner.Key != "" {
		r[ColSellerKey] = p.Owner.Key
	}
	if len(p.PaymentMethods) > 0 {
		b, _ := json.Marshal(p.PaymentMethods)
		r[ColPaymentMethods] = string(b)
	}
	if p.Image != "" {
		r[ColImage] = p.Image
	}
	if len(p.Thumbnails) > 0 {
		b, _ := json.Marshal(p.Thumbnails)
		r[ColThumbnails] = string(b)
	}
	if p.Description != "" {
		r[ColDescription] = p.Description
	}
	if p.Specifications != "" {
		r[ColSpecifications] = p.Specifications
	}
	if p.ShippingInfo != "" {
		r[ColShippingInfo] = p.ShippingInfo
	}
	if len(p.FAQs) > 0 {
		r[ColFAQs] = string(p.FAQs)
	}
	return r
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func asStringSlice(v any) []string {
	s := asString(v)
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err == nil {
		return out
	}
	return []string{s}
}
