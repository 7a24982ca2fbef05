package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/danisherror/backend-for-notes-expense-stocks/internal/store"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrMissingCredentials = errors.New("email and password required")
	ErrInvalidEmail       = errors.New("invalid email")
)

type Service struct {
	users  *store.Collection[User, *User]
	issuer string
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// User is stored under the lowercased email as its owner key, which keeps
// emails unique.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	Version      int64     `json:"-"`
}

func (u *User) DocKeys() store.Keys {
	return store.Keys{ID: u.ID, Owner: u.Email, Version: u.Version}
}

func (u *User) SetDocKeys(id string, version int64) {
	u.ID, u.Version = id, version
}

func NewService(s store.Store, issuer string, secret []byte, ttl time.Duration) *Service {
	return &Service{
		users:  store.NewCollection[User](s, store.KindUsers),
		issuer: issuer,
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *Service) Register(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", ErrMissingCredentials
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", ErrInvalidEmail
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	u := &User{Email: email, PasswordHash: string(hash), CreatedAt: s.now().UTC()}
	if err := s.users.Insert(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return "", ErrEmailTaken
		}
		return "", fmt.Errorf("insert user: %w", err)
	}
	return u.ID, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	// an empty owner filter matches every user
	if email == "" || password == "" {
		return "", ErrInvalidCredentials
	}
	u, err := s.users.FindOne(ctx, store.Filter{Owner: email})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.signToken(u.ID)
}

func (s *Service) signToken(userID string) (string, error) {
	now := s.now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}

func (s *Service) ParseToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return "", errors.New("invalid token")
	}
	if claims.Issuer != s.issuer {
		return "", errors.New("invalid issuer")
	}
	if claims.Subject == "" {
		return "", errors.New("invalid subject")
	}
	return claims.Subject, nil
}

func (s *Service) GetUser(ctx context.Context, userID string) (User, error) {
	u, err := s.users.FindOne(ctx, store.Filter{ID: userID})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	return u, nil
}

// UserExists reports whether the token subject still has an account.
func (s *Service) UserExists(ctx context.Context, userID string) (bool, error) {
	_, err := s.GetUser(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	return err == nil, err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
