package httpapi

import (
	"crypto/rand"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const deviceTokenType = "scanner"

var errNotDeviceToken = errors.New("not a scanner token")

type deviceClaims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// deviceTokens signs and checks HS256 tokens whose subject is a scanner name.
type deviceTokens struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func newDeviceTokens(secret string, ttl time.Duration) *deviceTokens {
	key := []byte(secret)
	if secret == "" {
		// Tokens will not survive a restart.
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic("failed to generate JWT key: " + err.Error())
		}
	}
	return &deviceTokens{key: key, ttl: ttl, now: time.Now}
}

func (d *deviceTokens) Issue(scanner string) (string, time.Time, error) {
	now := d.now()
	exp := now.Add(d.ttl)
	claims := deviceClaims{
		Type: deviceTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   scanner,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(d.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse returns the scanner name a valid device token was issued for.
func (d *deviceTokens) Parse(tokenStr string) (string, error) {
	var claims deviceClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return d.key, nil
	}, jwt.WithTimeFunc(d.now))
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.Type != deviceTokenType || claims.Subject == "" {
		return "", errNotDeviceToken
	}
	return claims.Subject, nil
}
