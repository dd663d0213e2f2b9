package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"pmcell-separacao/internal/db"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserInactive       = errors.New("user inactive")
	ErrPermissionDenied   = errors.New("permission denied")
)

// Service authenticates operators by PIN and issues HS256 bearer tokens.
type Service struct {
	db     *db.DB
	secret []byte
	ttl    time.Duration
}

func NewService(d *db.DB, secret string, ttl time.Duration) *Service {
	return &Service{db: d, secret: []byte(secret), ttl: ttl}
}

// HashPIN derives the bcrypt hash stored alongside the verbatim PIN.
func HashPIN(pin string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash pin: %w", err)
	}
	return string(h), nil
}

func checkPIN(hash, pin string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}

// Login verifies a PIN, stamps last_login and returns a fresh token plus
// the user. Unknown PINs and hash mismatches are indistinguishable to the
// caller; inactive accounts are reported as such.
func (s *Service) Login(pin string) (string, *db.User, error) {
	user, err := s.db.GetUserByPin(pin)
	if err != nil {
		return "", nil, fmt.Errorf("lookup pin: %w", err)
	}
	if user == nil || !checkPIN(user.PinHash, pin) {
		return "", nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return "", nil, ErrUserInactive
	}
	token, err := s.MintToken(user.ID)
	if err != nil {
		return "", nil, err
	}
	if err := s.db.TouchLastLogin(user.ID); err != nil {
		return "", nil, fmt.Errorf("stamp last login: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	user.LastLogin = &now
	return token, user, nil
}

// MintToken issues an HS256 token whose subject is the user id.
func (s *Service) MintToken(userID int64) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Authenticate resolves a bearer token to its active user. Expired or
// malformed tokens, unknown subjects and deleted users all come back as
// ErrInvalidCredentials; a valid token for a deactivated account is
// ErrUserInactive.
func (s *Service) Authenticate(tokenString string) (*db.User, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidCredentials
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return nil, ErrInvalidCredentials
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	user, err := s.db.GetUser(userID)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	return user, nil
}

// RequireRole checks the user's role against an allow list. An empty
// list allows any authenticated user.
func RequireRole(user *db.User, roles ...string) error {
	if len(roles) == 0 {
		return nil
	}
	for _, r := range roles {
		if user.Role == r {
			return nil
		}
	}
	return ErrPermissionDenied
}
