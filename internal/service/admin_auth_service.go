package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/BazaarDev/bazaar_api/internal/store"
	"github.com/BazaarDev/bazaar_api/internal/utils"
)

// AdminAuthService authenticates administrators against the admin_users
// relation.
type AdminAuthService struct {
	store     *store.Store
	jwtExpiry time.Duration
}

// NewAdminAuthService constructs an AdminAuthService.
func NewAdminAuthService(st *store.Store, jwtExpiry time.Duration) *AdminAuthService {
	return &AdminAuthService{store: st, jwtExpiry: jwtExpiry}
}

// Login verifies admin credentials and issues a token with the admin role.
func (s *AdminAuthService) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	rows, err := s.store.SelectLimit(ctx, "admin_users", store.Filter{}.Eq("email", email), 1)
	if err != nil || len(rows) == 0 {
		return "", utils.ErrBadCredentials
	}
	row := rows[0]

	active, _ := row["is_active"].(bool)
	if !active {
		log.Warn().Str("email", email).Msg("admin account is inactive")
		return "", utils.ErrBadCredentials
	}

	hash, _ := row["password_hash"].(string)
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		log.Debug().Str("email", email).Msg("password verification failed")
		return "", utils.ErrBadCredentials
	}

	var id string
	switch v := row["id"].(type) {
	case int64:
		id = strconv.FormatInt(v, 10)
	case string:
		id = v
	}

	log.Info().Str("email", email).Msg("admin login successful")
	return utils.GenerateJWT(id, "admin", s.jwtExpiry)
}

// CreateAdmin provisions an administrator account.
func (s *AdminAuthService) CreateAdmin(ctx context.Context, email, password, name string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = s.store.Insert(ctx, "admin_users", store.Row{
		"email":         strings.ToLower(strings.TrimSpace(email)),
		"password_hash": string(hashed),
		"name":          name,
		"is_active":     true,
	})
	return err
}
