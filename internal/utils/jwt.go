// internal/utils/jwt.go
package utils

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/docucontrol/tramites-portal/internal/models"
)

// JWTClaims mirrors the access tokens issued by the municipal backend. The
// user id travels in "sub"; profile claims are optional and only used to
// pre-fill the applicant form.
type JWTClaims struct {
	Role      string `json:"rol,omitempty"`
	FirstName string `json:"nombres,omitempty"`
	LastName  string `json:"apellidos,omitempty"`
	DNI       string `json:"dni,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"telefono,omitempty"`
	Address   string `json:"direccion,omitempty"`
	jwt.RegisteredClaims
}

func (c *JWTClaims) UserID() string {
	return c.Subject
}

// Profile builds the applicant pre-fill from the token claims.
func (c *JWTClaims) Profile() models.ApplicantProfile {
	return models.ApplicantProfile{
		FullName: strings.TrimSpace(c.FirstName + " " + c.LastName),
		IDNumber: c.DNI,
		Phone:    c.Phone,
		Email:    c.Email,
		Address:  c.Address,
	}
}

var jwtSecret = []byte("your-secret-key-change-in-production")

func SetJWTSecret(secret string) {
	jwtSecret = []byte(secret)
}

// GenerateJWT signs a token with the shared secret. The portal never issues
// tokens to users; this is used by tooling and tests.
func GenerateJWT(userID string, profile models.ApplicantProfile, role string, ttl time.Duration) (string, error) {
	first, last := splitName(profile.FullName)
	claims := JWTClaims{
		Role:      role,
		FirstName: first,
		LastName:  last,
		DNI:       profile.IDNumber,
		Email:     profile.Email,
		Phone:     profile.Phone,
		Address:   profile.Address,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

func splitName(full string) (string, string) {
	parts := strings.SplitN(strings.TrimSpace(full), " ", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}

func ValidateJWT(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}

	return claims, nil
}
