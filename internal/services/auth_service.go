package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"autospa/internal/domain"
	applog "autospa/internal/log"
	"autospa/internal/repos"
	"autospa/internal/validate"
)

const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

var ErrBadCreds = domain.Unauthenticated("invalid email or password")

// Claims is the payload of both token kinds. Type tells them apart so a
// refresh token can never pass as an access token.
type Claims struct {
	Role string `json:"role,omitempty"`
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type AuthConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type AuthService struct {
	store *repos.Store
	carts *CartService
	cfg   AuthConfig
	now   func() time.Time
	cost  int
}

func NewAuthService(store *repos.Store, carts *CartService, cfg AuthConfig) *AuthService {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	return &AuthService{store: store, carts: carts, cfg: cfg, now: time.Now, cost: bcrypt.DefaultCost}
}

// AccessSecret is the key the bearer middleware verifies with.
func (s *AuthService) AccessSecret() []byte { return []byte(s.cfg.AccessSecret) }

type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	RUT      string `json:"rut"`
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	var u domain.User
	var ok bool
	if u.Email, ok = validate.Email(in.Email); !ok {
		return u, domain.Invalid("email", "must be a valid email address")
	}
	if !validate.Password(in.Password) {
		return u, domain.Invalid("password", "must be 8-64 characters with upper and lower case letters, a digit and a symbol")
	}
	if u.Name, ok = validate.Name(in.Name); !ok {
		return u, domain.Invalid("name", "is required")
	}
	if err := normalizeProfile(&u, in.Phone, in.RUT); err != nil {
		return u, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return u, fmt.Errorf("hash password: %w", err)
	}
	u.ID, u.Hash, u.Role, u.CreatedAt = uuid.NewString(), string(hash), domain.RoleCustomer, repos.Timestamp(s.now())
	if err := s.store.Users.Create(ctx, u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func normalizeProfile(u *domain.User, phone, rutIn string) error {
	u.Phone, u.RUT = "", ""
	if phone != "" {
		p, ok := validate.Phone(phone)
		if !ok {
			return domain.Invalid("phone", "must be a Chilean phone number")
		}
		u.Phone = p
	}
	if rutIn != "" {
		r, err := validate.RUT(rutIn)
		if err != nil {
			return domain.Invalid("rut", "%v", err)
		}
		u.RUT = r
	}
	return nil
}

// Login checks credentials, issues a token pair and moves the guest cart of
// sessionID (if any) into the user's cart.
func (s *AuthService) Login(ctx context.Context, email, password, sessionID string) (domain.User, TokenPair, error) {
	u, err := s.store.Users.ByEmail(ctx, email)
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.User{}, TokenPair{}, ErrBadCreds
		}
		return domain.User{}, TokenPair{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(password)) != nil {
		return domain.User{}, TokenPair{}, ErrBadCreds
	}
	pair, err := s.issue(ctx, u)
	if err != nil {
		return domain.User{}, TokenPair{}, err
	}
	if sessionID != "" && s.carts != nil {
		moved, err := s.carts.MergeGuest(ctx, sessionID, u.ID)
		if err != nil {
			// Login still succeeds; the guest cart stays under the session.
			applog.Error(nil, "cart.merge.failed", err, map[string]any{"user_id": u.ID})
		} else if moved > 0 {
			applog.Info(nil, "cart.merged", map[string]any{"user_id": u.ID, "lines": moved})
		}
	}
	return u, pair, nil
}

// Refresh redeems a refresh token for a new pair. Each refresh token works
// once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.parse(refreshToken, s.cfg.RefreshSecret, TokenRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	ok, err := s.store.Users.ConsumeRefreshToken(ctx, claims.ID, claims.Subject)
	if err != nil {
		return TokenPair{}, err
	}
	if !ok {
		return TokenPair{}, domain.Unauthenticated("refresh token revoked or already used")
	}
	u, err := s.store.Users.ByID(ctx, claims.Subject)
	if err != nil {
		if domain.IsNotFound(err) {
			return TokenPair{}, domain.Unauthenticated("account no longer exists")
		}
		return TokenPair{}, err
	}
	return s.issue(ctx, u)
}

// Logout revokes every refresh token of the user.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	return s.store.Users.RevokeRefreshTokens(ctx, userID)
}

func (s *AuthService) Me(ctx context.Context, userID string) (domain.User, error) {
	return s.store.Users.ByID(ctx, userID)
}

type ProfileInput struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	RUT   string `json:"rut"`
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (domain.User, error) {
	u, err := s.store.Users.ByID(ctx, userID)
	if err != nil {
		return u, err
	}
	name, ok := validate.Name(in.Name)
	if !ok {
		return u, domain.Invalid("name", "is required")
	}
	u.Name = name
	if err := normalizeProfile(&u, in.Phone, in.RUT); err != nil {
		return u, err
	}
	return u, s.store.Users.UpdateProfile(ctx, u)
}

func (s *AuthService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.store.Users.List(ctx)
}

// DeleteUser removes an account, its cart and tokens. Orders are kept.
func (s *AuthService) DeleteUser(ctx context.Context, userID string) error {
	return s.store.Atomic(ctx, func(tx *repos.Store) error {
		return tx.Users.DeleteUserCascade(ctx, userID)
	})
}

// ParseAccess verifies an access token.
func (s *AuthService) ParseAccess(token string) (*Claims, error) {
	return s.parse(token, s.cfg.AccessSecret, TokenAccess)
}

func (s *AuthService) issue(ctx context.Context, u domain.User) (TokenPair, error) {
	now := s.now()
	access := Claims{
		Role: u.Role,
		Type: TokenAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTTL)),
		},
	}
	at, err := jwt.NewWithClaims(jwt.SigningMethodHS256, access).SignedString([]byte(s.cfg.AccessSecret))
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshExp := now.Add(s.cfg.RefreshTTL)
	refresh := Claims{
		Type: TokenRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExp),
		},
	}
	rt, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refresh).SignedString([]byte(s.cfg.RefreshSecret))
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	if err := s.store.Users.SaveRefreshToken(ctx, refresh.ID, u.ID, refreshExp); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: at, RefreshToken: rt, TokenType: "Bearer", ExpiresIn: int64(s.cfg.AccessTTL.Seconds())}, nil
}

func (s *AuthService) parse(token, secret, typ string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, domain.Unauthenticated("token expired")
		}
		return nil, domain.Unauthenticated("invalid token")
	}
	if claims.Type != typ || claims.Subject == "" {
		return nil, domain.Unauthenticated("invalid token")
	}
	return claims, nil
}
