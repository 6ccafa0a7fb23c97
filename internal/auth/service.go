package auth

import (
	"context"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"todoapp/internal/config"
	"todoapp/internal/models"
)

// Ledger is the persistence capability the token core needs: durable refresh
// records with explicit flag updates. MarkUsed must be atomic with respect to
// concurrent calls on the same record and return ErrRefreshTokenAlreadyUsed
// when the record was already consumed.
type Ledger interface {
	Insert(ctx context.Context, record *models.RefreshToken) error
	FindByToken(ctx context.Context, token string) (*models.RefreshToken, error)
	MarkUsed(ctx context.Context, id primitive.ObjectID) error
	Revoke(ctx context.Context, token string) error
}

// UserDirectory is the user-lookup capability consumed during refresh.
type UserDirectory interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// TokenPair is what a successful login, registration or refresh hands back.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Service issues access/refresh token pairs and redeems refresh tokens.
// Configuration is fixed at construction; the signing secret never changes
// while the process runs.
type Service struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	users      UserDirectory
	ledger     Ledger
}

func NewService(cfg config.Config, users UserDirectory, ledger Ledger) *Service {
	return &Service{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.JWTIssuer,
		audience:   cfg.JWTAudience,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		users:      users,
		ledger:     ledger,
	}
}

// Issue mints a signed access token plus a paired single-use refresh token
// and persists the refresh record. The pair is only returned once the record
// is durably written; an insert failure fails the whole call.
func (s *Service) Issue(ctx context.Context, user *models.User) (*TokenPair, error) {
	now := time.Now()
	jti := uuid.NewString()

	claims := jwt.MapClaims{
		"Id":    user.ID.Hex(),
		"sub":   user.Email,
		"email": user.Email,
		"jti":   jti,
		"iss":   s.issuer,
		"aud":   s.audience,
		"iat":   now.Unix(),
		"nbf":   now.Unix(),
		"exp":   now.Add(s.accessTTL).Unix(),
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(s.secret)
	if err != nil {
		return nil, err
	}

	refreshToken, err := newRefreshTokenString()
	if err != nil {
		return nil, err
	}

	record := &models.RefreshToken{
		UserID:     user.ID,
		JwtID:      jti,
		Token:      refreshToken,
		IsUsed:     false,
		IsRevoked:  false,
		AddedDate:  now,
		ExpiryDate: now.Add(s.refreshTTL),
	}

	if err := s.ledger.Insert(ctx, record); err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Refresh redeems an expired access token together with its paired refresh
// token for a fresh pair. The checks run as a strict pipeline; the first
// failure ends the attempt and the caller has to log in again.
func (s *Service) Refresh(ctx context.Context, accessToken, refreshToken string) (*TokenPair, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())

	token, err := parser.ParseWithClaims(accessToken, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	// Signature checking alone does not pin the algorithm.
	if alg, _ := token.Header["alg"].(string); alg != jwt.SigningMethodHS512.Alg() {
		return nil, ErrInvalidToken
	}

	// Lifetime validation is off above, so issuer and audience are checked
	// here by hand. No clock skew is tolerated anywhere in this pipeline.
	if iss, err := claims.GetIssuer(); err != nil || iss != s.issuer {
		return nil, ErrInvalidToken
	}
	aud, err := claims.GetAudience()
	if err != nil || !containsAudience(aud, s.audience) {
		return nil, ErrInvalidToken
	}

	expiry, err := claims.GetExpirationTime()
	if err != nil || expiry == nil || expiry.Unix() <= 0 {
		return nil, ErrInvalidToken
	}

	// This endpoint exists for tokens that HAVE expired. A still-valid access
	// token should keep being used instead of rotated.
	if expiry.After(time.Now()) {
		return nil, ErrTokenNotYetExpired
	}

	record, err := s.ledger.FindByToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	if time.Now().After(record.ExpiryDate) {
		return nil, ErrRefreshTokenExpired
	}
	if record.IsUsed {
		return nil, ErrRefreshTokenAlreadyUsed
	}
	if record.IsRevoked {
		return nil, ErrRefreshTokenRevoked
	}

	jti, _ := claims["jti"].(string)
	if jti == "" || record.JwtID != jti {
		return nil, ErrTokenMismatch
	}

	// MarkUsed is a compare-and-set on isUsed; when two refreshes race on the
	// same token only one passes this point.
	if err := s.ledger.MarkUsed(ctx, record.ID); err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, record.UserID)
	if err != nil {
		return nil, err
	}

	return s.Issue(ctx, user)
}

// Revoke retires a refresh token out of band, e.g. on logout. The record
// stays in the ledger with isRevoked set.
func (s *Service) Revoke(ctx context.Context, refreshToken string) error {
	if err := s.ledger.Revoke(ctx, refreshToken); err != nil {
		log.Println("[AUTH] [ERROR] revoke failed:", err)
		return err
	}
	return nil
}

func containsAudience(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}
