// Copyright 2026 The Coachgrid Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coachgrid/coachgrid/internal/observability/logger"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
)

// Tenant Context Principles:
// 1. The tenant of a request is derived from the principal's resolved role
// 2. Clients never name their own tenant
//
// Anti-Patterns (FORBIDDEN):
// - X-Tenant-ID or similar headers selecting the tenant
// - Trusting tenant or role claims carried in the token

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			slog.DebugContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.PrincipalID(GetPrincipalID(r.Context())),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// TokenConfig configures bearer token validation
type TokenConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// Authenticator validates HS256 bearer tokens issued by the identity store.
// Only the subject is trusted; role and tenant are resolved per request.
type Authenticator struct {
	secret []byte
	parser *jwt.Parser
}

// NewAuthenticator creates a new bearer token authenticator
func NewAuthenticator(cfg TokenConfig) *Authenticator {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &Authenticator{secret: cfg.Secret, parser: jwt.NewParser(opts...)}
}

var errMissingSubject = errors.New("token has no subject")

// Subject validates a raw token and returns its subject claim
func (a *Authenticator) Subject(raw string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := a.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	if claims.Subject == "" {
		return "", errMissingSubject
	}
	return claims.Subject, nil
}

// AuthMiddleware validates the bearer token and adds the principal ID to context
func (a *Authenticator) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			respondError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		principalID, err := a.Subject(raw)
		if err != nil {
			slog.DebugContext(r.Context(), "bearer token rejected", logger.Error(err))
			respondError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		if r.Header.Get("X-Tenant-ID") != "" {
			slog.WarnContext(r.Context(), "tenant header spoofing attempt detected on authenticated route",
				logger.PrincipalID(principalID),
			)
			respondError(w, http.StatusBadRequest, "X-Tenant-ID header is not allowed; tenant is derived from the principal")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipalID(r.Context(), principalID)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
