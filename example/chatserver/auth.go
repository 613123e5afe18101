package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/golang-jwt/jwt/v4"

	"github.com/kbrandt/gqltransport"
)

// auth.go authenticates a connection_init payload using an HMAC-signed JWT.
// It is wired as an OnConnect hook rather than an http.Handler wrapper,
// since authentication happens once per socket at connection_init time
// rather than per HTTP request.
const (
	userIDClaim = "jti"
)

type initPayload struct {
	AuthToken string `json:"authToken"`
}

func newAuthenticator(secret string) gqltransport.OnConnectFunc {
	return func(_ context.Context, raw json.RawMessage) (*gqltransport.ConnectResult, error) {
		if len(raw) == 0 {
			return nil, fmt.Errorf("missing connectionParams")
		}
		var payload initPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("invalid connectionParams: %w", err)
		}
		userID, err := verifyToken(payload.AuthToken, secret)
		if err != nil {
			return nil, err
		}
		return &gqltransport.ConnectResult{AckPayload: map[string]string{"user": userID}}, nil
	}
}

func verifyToken(raw, secret string) (string, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid auth token")
	}
	id, _ := token.Claims.(jwt.MapClaims)[userIDClaim].(string)
	if id == "" {
		return "", fmt.Errorf("auth token missing %q claim", userIDClaim)
	}
	return id, nil
}

func issueToken(userID, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIDClaim: userID,
	})
	return token.SignedString([]byte(secret))
}
