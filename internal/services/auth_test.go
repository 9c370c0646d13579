package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/studyforge-backend/internal/data/repos/testutil"
	"github.com/yungbote/studyforge-backend/internal/platform/apierr"
	"github.com/yungbote/studyforge-backend/internal/platform/ctxutil"
)

func signToken(t *testing.T, secret string, claims jwt.RegisteredClaims, method jwt.SigningMethod) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestAuthServiceSetsRequestUser(t *testing.T) {
	svc := NewAuthService(testutil.Logger(t), "secret", "")
	userID := uuid.New()
	tok := signToken(t, "secret", jwt.RegisteredClaims{
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}, jwt.SigningMethodHS256)

	ctx, err := svc.SetContextFromToken(context.Background(), tok)
	require.NoError(t, err)
	rd := ctxutil.GetRequestData(ctx)
	require.NotNil(t, rd)
	assert.Equal(t, userID, rd.UserID)
}

func TestAuthServiceRejectsBadTokens(t *testing.T) {
	svc := NewAuthService(testutil.Logger(t), "secret", "studyforge")
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))
	past := jwt.NewNumericDate(time.Now().Add(-time.Hour))
	sub := uuid.New().String()

	cases := map[string]string{
		"empty":        "",
		"garbage":      "not.a.token",
		"wrong secret": signToken(t, "other", jwt.RegisteredClaims{Subject: sub, Issuer: "studyforge", ExpiresAt: future}, jwt.SigningMethodHS256),
		"expired":      signToken(t, "secret", jwt.RegisteredClaims{Subject: sub, Issuer: "studyforge", ExpiresAt: past}, jwt.SigningMethodHS256),
		"no expiry":    signToken(t, "secret", jwt.RegisteredClaims{Subject: sub, Issuer: "studyforge"}, jwt.SigningMethodHS256),
		"wrong issuer": signToken(t, "secret", jwt.RegisteredClaims{Subject: sub, Issuer: "elsewhere", ExpiresAt: future}, jwt.SigningMethodHS256),
		"bad subject":  signToken(t, "secret", jwt.RegisteredClaims{Subject: "alice", Issuer: "studyforge", ExpiresAt: future}, jwt.SigningMethodHS256),
		"wrong alg":    signToken(t, "secret", jwt.RegisteredClaims{Subject: sub, Issuer: "studyforge", ExpiresAt: future}, jwt.SigningMethodHS512),
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			ctx, err := svc.SetContextFromToken(context.Background(), tok)
			require.Error(t, err)
			assert.Equal(t, 401, apierr.StatusOf(err))
			assert.Nil(t, ctxutil.GetRequestData(ctx))
		})
	}
}
