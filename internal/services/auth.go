package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/studyforge-backend/internal/platform/apierr"
	"github.com/yungbote/studyforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

// AuthService verifies bearer tokens minted upstream. The subject claim is the learner id.
type AuthService interface {
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
}

type authService struct {
	log          *logger.Logger
	jwtSecretKey []byte
	issuer       string
	leeway       time.Duration
}

func NewAuthService(baseLog *logger.Logger, jwtSecretKey string, issuer string) AuthService {
	return &authService{
		log:          baseLog.With("service", "AuthService"),
		jwtSecretKey: []byte(jwtSecretKey),
		issuer:       issuer,
		leeway:       30 * time.Second,
	}
}

var errInvalidToken = errors.New("invalid or expired token")

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString == "" {
		return ctx, apierr.New(http.StatusUnauthorized, "unauthorized", errInvalidToken)
	}
	if len(as.jwtSecretKey) == 0 {
		return ctx, apierr.New(http.StatusUnauthorized, "unauthorized", fmt.Errorf("token verification is not configured"))
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(as.leeway),
		jwt.WithExpirationRequired(),
	}
	if as.issuer != "" {
		opts = append(opts, jwt.WithIssuer(as.issuer))
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return as.jwtSecretKey, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		as.log.Debug("token rejected", "error", err)
		return ctx, apierr.New(http.StatusUnauthorized, "unauthorized", errInvalidToken)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID == uuid.Nil {
		return ctx, apierr.New(http.StatusUnauthorized, "unauthorized", fmt.Errorf("invalid subject in token"))
	}
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{UserID: userID}), nil
}
