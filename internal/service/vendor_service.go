package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/BazaarDev/bazaar_api/internal/models"
	"github.com/BazaarDev/bazaar_api/internal/repository"
	"github.com/BazaarDev/bazaar_api/internal/store"
	"github.com/BazaarDev/bazaar_api/internal/utils"
)

// VendorService handles vendor onboarding and authentication. Vendor rows are
// written to the core vendors relation; the minimal seller profile is ensured
// right away so the vendor's first product write has a satisfied ownership
// link.
type VendorService struct {
	store     *store.Store
	resolver  *repository.OwnerResolver
	jwtExpiry time.Duration
}

// NewVendorService constructs a VendorService.
func NewVendorService(st *store.Store, resolver *repository.OwnerResolver, jwtExpiry time.Duration) *VendorService {
	return &VendorService{store: st, resolver: resolver, jwtExpiry: jwtExpiry}
}

// RegisterVendorRequest is the onboarding payload.
type RegisterVendorRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// Register creates a vendor account and its seller profile.
func (s *VendorService) Register(ctx context.Context, req *RegisterVendorRequest) (*models.Vendor, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	existing, err := s.store.SelectLimit(ctx, "vendors", store.Filter{}.Eq("email", email), 1)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, utils.ErrEmailTaken
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	row, err := s.store.Insert(ctx, "vendors", store.Row{
		"name":          strings.TrimSpace(req.Name),
		"email":         email,
		"password_hash": string(hashed),
		"role":          "vendor",
		"verified":      false,
	})
	if err != nil {
		return nil, err
	}

	vendor := models.VendorFromRow(row)
	// Best-effort: a missing profile is healed again at write time.
	s.resolver.EnsureProfile(ctx, vendor.ID)

	log.Info().Int64("vendor_id", vendor.ID).Str("email", email).Msg("vendor registered")
	return &vendor, nil
}

// Login verifies credentials and issues an access token whose subject is the
// vendor's numeric id.
func (s *VendorService) Login(ctx context.Context, email, password string) (string, *models.Vendor, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	rows, err := s.store.SelectLimit(ctx, "vendors", store.Filter{}.Eq("email", email), 1)
	if err != nil || len(rows) == 0 {
		return "", nil, utils.ErrBadCredentials
	}
	vendor := models.VendorFromRow(rows[0])

	if err := bcrypt.CompareHashAndPassword([]byte(vendor.PasswordHash), []byte(password)); err != nil {
		log.Debug().Str("email", email).Msg("password verification failed")
		return "", nil, utils.ErrBadCredentials
	}

	token, err := utils.GenerateJWT(strconv.FormatInt(vendor.ID, 10), "vendor", s.jwtExpiry)
	if err != nil {
		return "", nil, err
	}
	return token, &vendor, nil
}

// Profile returns the vendor identified by the actor, probing the candidate
// relations through the resolver.
func (s *VendorService) Profile(ctx context.Context, actorID string) (*models.Vendor, error) {
	_, row, err := s.resolver.FindVendorByIdentity(ctx, actorID)
	if row == nil {
		if err != nil {
			log.Debug().Err(err).Str("actor_id", actorID).Msg("vendor probe errors")
		}
		return nil, utils.ErrVendorNotFound
	}
	vendor := models.VendorFromRow(row)
	return &vendor, nil
}
