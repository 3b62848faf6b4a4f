package models

import (
	"time"

	"github.com/BazaarDev/bazaar_api/internal/normalize"
	"github.com/BazaarDev/bazaar_api/internal/store"
)

// Vendor represents a seller account. Vendor rows live in one of several
// candidate relations that evolved independently; at most one is
// authoritative for a given vendor at query time.
type Vendor struct {
	ID           int64     `json:"id"`
	VendorNo     *int64    `json:"vendorNo,omitempty"`
	UserID       string    `json:"userId,omitempty"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	Verified     bool      `json:"verified"`
	Role         string    `json:"role,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// VendorFromRow projects a vendor row into a Vendor. Candidate relations
// disagree on column sets, so every field is optional.
func VendorFromRow(r store.Row) Vendor {
	v := Vendor{}
	if n, ok := normalize.Number(r["id"]); ok {
		v.ID = int64(n)
	}
	if n, ok := normalize.Number(r["vendor_no"]); ok {
		no := int64(n)
		v.VendorNo = &no
	}
	v.UserID = asString(r["user_id"])
	v.Name = asString(r["name"])
	v.Email = asString(r["email"])
	v.PasswordHash = asString(r["password_hash"])
	v.Role = asString(r["role"])
	if b, ok := r["verified"].(bool); ok {
		v.Verified = b
	} else if n, ok := normalize.Number(r["verified"]); ok {
		v.Verified = n != 0
	}
	if t, ok := r["created_at"].(time.Time); ok {
		v.CreatedAt = t
	}
	return v
}

// Actor is the authenticated caller of a request.
type Actor struct {
	ID   string
	Role string
}

// IsAdmin reports whether the actor holds the administrator role.
func (a Actor) IsAdmin() bool {
	return a.Role == "admin"
}
