package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/socialhub/internal/config"
	"github.com/socialhub/pkg/keygen"
)

// TokenPurpose distinguishes the kinds of signed tokens so one cannot stand in for another
type TokenPurpose string

const (
	PurposeConfirm TokenPurpose = "confirm"
	PurposeRecover TokenPurpose = "recover"
	PurposeSession TokenPurpose = "session"
)

const tokenIssuer = "socialhub"

// Claims represents the JWT claims of every token the service signs
type Claims struct {
	UserID  string       `json:"_id,omitempty"`
	Email   string       `json:"email,omitempty"`
	Purpose TokenPurpose `json:"purpose"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies confirmation, recovery and session tokens
type TokenService struct {
	secret   []byte
	emailTTL time.Duration
	now      func() time.Time
}

// NewTokenService creates a new TokenService
func NewTokenService(jwtConfig config.JWTConfig) *TokenService {
	return &TokenService{
		secret:   []byte(jwtConfig.Secret),
		emailTTL: jwtConfig.EmailTokenTTL(),
		now:      time.Now,
	}
}

// EmailTokenTTL returns the lifetime of confirmation and recovery tokens
func (s *TokenService) EmailTokenTTL() time.Duration {
	return s.emailTTL
}

// IssueEmailToken signs a time-limited token embedding email
func (s *TokenService) IssueEmailToken(purpose TokenPurpose, email string) (string, error) {
	now := s.now()
	claims := &Claims{
		Email:   email,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.emailTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}
	return s.sign(claims)
}

// VerifyEmailToken checks signature, expiry and purpose and returns the embedded email
func (s *TokenService) VerifyEmailToken(purpose TokenPurpose, tokenString string) (string, error) {
	claims, err := s.parse(tokenString, jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	if claims.Purpose != purpose || claims.Email == "" {
		return "", ErrInvalidToken
	}
	return claims.Email, nil
}

// IssueSessionToken signs a bearer token embedding userID. Session tokens do
// not expire; they are revoked by removal from the user's token list.
func (s *TokenService) IssueSessionToken(userID string) (string, error) {
	jti, err := keygen.TokenID()
	if err != nil {
		return "", err
	}
	claims := &Claims{
		UserID:  userID,
		Purpose: PurposeSession,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       jti,
			IssuedAt: jwt.NewNumericDate(s.now()),
			Issuer:   tokenIssuer,
		},
	}
	return s.sign(claims)
}

// VerifySessionToken checks a bearer token and returns the embedded user id
func (s *TokenService) VerifySessionToken(tokenString string) (string, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return "", err
	}
	if claims.Purpose != PurposeSession || claims.UserID == "" {
		return "", ErrInvalidToken
	}
	return claims.UserID, nil
}

func (s *TokenService) sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// parse validates a token; malformed and expired tokens are not distinguished
func (s *TokenService) parse(tokenString string, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}
