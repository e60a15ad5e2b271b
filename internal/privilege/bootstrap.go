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

package privilege

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coachgrid/coachgrid/internal/audit"
	"github.com/coachgrid/coachgrid/internal/observability/logger"
)

// Bootstrap adds the principal with the given email to the super-admin set
// when the set is empty. It is a no-op when email is empty or a super admin exists.
func (s *Service) Bootstrap(ctx context.Context, email string) error {
	if email == "" {
		return nil
	}

	count, err := s.superAdmins.CountSuperAdmins(ctx)
	if err != nil {
		return fmt.Errorf("failed to count super admins: %w", err)
	}
	if count > 0 {
		return nil
	}

	profile, err := s.profiles.GetProfileByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("bootstrap principal not found (email: %s): %w", email, err)
	}

	if err := s.superAdmins.AddSuperAdmin(ctx, profile.PrincipalID); err != nil {
		return fmt.Errorf("failed to add super admin during bootstrap: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeSuperAdminAdded,
		ActorID:  audit.ActorSystemBootstrap,
		Resource: profile.PrincipalID,
		Metadata: map[string]any{"email": email},
	})
	slog.InfoContext(ctx, "bootstrapped initial super admin",
		logger.PrincipalID(profile.PrincipalID),
		logger.Email(email),
	)
	return nil
}
