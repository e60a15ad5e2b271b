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

package audit

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Event types
const (
	TypeAccessDenied       = "access_denied"
	TypeAdminPromoted      = "admin_promoted"
	TypeAdminDemoted       = "admin_demoted"
	TypePermissionGranted  = "permission_granted"
	TypePermissionRevoked  = "permission_revoked"
	TypeUserCreated        = "user_created"
	TypeSuperAdminAdded    = "super_admin_added"
	TypeDayCloned          = "day_cloned"
	TypeCloneFailed        = "clone_failed"
	TypeWorkoutAssigned    = "workout_assigned"
	TypeWorkoutCompleted   = "workout_completed"
	TypeExercisesReordered = "exercises_reordered"
)

// Actors that are not principals
const (
	ActorSystemBootstrap = "system:bootstrap"
)

// Event represents an auditable action
type Event struct {
	Type      string
	TenantID  string
	ActorID   string
	Resource  string
	Metadata  map[string]any
	Timestamp time.Time
	IPAddress string
}

// Logger defines the interface for audit logging
type Logger interface {
	Log(ctx context.Context, event Event)
}

// SlogLogger implements Logger using slog
type SlogLogger struct{}

// NewSlogLogger creates a new audit logger
func NewSlogLogger() *SlogLogger {
	return &SlogLogger{}
}

// Log records an audit event
func (l *SlogLogger) Log(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	attrs := []any{
		slog.String("audit_type", event.Type),
		slog.String("tenant_id", event.TenantID),
		slog.String("actor_id", event.ActorID),
		slog.String("resource", event.Resource),
		slog.Time("timestamp", event.Timestamp),
	}

	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}

	if len(event.Metadata) > 0 {
		attrs = append(attrs, slog.Group("metadata", redact(event.Metadata)...))
	}

	slog.InfoContext(ctx, "AUDIT_EVENT", append(attrs, slog.String("component", "audit"))...)
}

func redact(metadata map[string]any) []any {
	group := make([]any, 0, len(metadata))
	for k, v := range metadata {
		if isSecret(k) {
			v = "[REDACTED]"
		}
		group = append(group, slog.Any(k, v))
	}
	return group
}

// isSecret checks if a key likely contains a secret
func isSecret(key string) bool {
	key = strings.ToLower(key)
	for _, s := range []string{"password", "secret", "token", "key", "hash", "credential", "authorization"} {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}

// Nop discards every event.
type Nop struct{}

func (Nop) Log(context.Context, Event) {}
