package utils

import (
	"errors"
	"testing"
	"time"
)

func TestJWTManager(t *testing.T) {
	m := NewJWTManager("secret", "video-sentinel")

	token, err := m.GenerateToken("ops", RoleOperator, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := m.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.UserID != "ops" || claims.Role != RoleOperator {
		t.Errorf("claims = %+v", claims)
	}

	tests := []struct {
		name    string
		manager *JWTManager
		token   func() string
		wantErr error
	}{
		{
			name:    "expired",
			manager: m,
			token: func() string {
				tok, _ := m.GenerateToken("ops", RoleOperator, -time.Minute)
				return tok
			},
			wantErr: ErrExpiredToken,
		},
		{
			name:    "wrong secret",
			manager: NewJWTManager("other", "video-sentinel"),
			token:   func() string { return token },
			wantErr: ErrInvalidToken,
		},
		{
			name:    "wrong issuer",
			manager: NewJWTManager("secret", "someone-else"),
			token:   func() string { return token },
			wantErr: ErrInvalidToken,
		},
		{
			name:    "garbage",
			manager: m,
			token:   func() string { return "not-a-jwt" },
			wantErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.manager.ParseToken(tt.token()); !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseToken() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
