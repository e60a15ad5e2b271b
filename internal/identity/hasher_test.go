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

package identity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHasher() *PasswordHasher {
	return NewPasswordHasher(1024, 1, 1, 16, 32)
}

// TestPurpose: Validates that Argon2id hashes verify the original password and reject others.
// Scope: Unit Test
// Security: Credential storage (CWE-916)
// Expected: Verify returns true for the right password and false for a wrong one.
// Test Case ID: IDN-01
func TestIdentity_PasswordHasher_RoundTrip(t *testing.T) {
	h := testHasher()

	encoded, err := h.Hash("correct-horse")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$"))

	ok, err := h.Verify("correct-horse", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("wrong-horse", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestPurpose: Validates that malformed hashes are rejected with an error.
// Scope: Unit Test
// Expected: Verify returns an error for hashes that are not Argon2id encoded.
// Test Case ID: IDN-02
func TestIdentity_PasswordHasher_RejectsMalformedHash(t *testing.T) {
	_, err := testHasher().Verify("x", "$bcrypt$whatever")
	assert.Error(t, err)
}

// TestPurpose: Validates input rules applied when preparing a principal.
// Scope: Unit Test
// Expected: Invalid email and short password are rejected; valid input yields a hashed credential.
// Test Case ID: IDN-03
func TestIdentity_Provisioner_Prepare(t *testing.T) {
	p := NewProvisioner(testHasher())

	_, _, err := p.Prepare("nope", "longenough")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, _, err = p.Prepare("athlete@gym.test", "short")
	assert.ErrorIs(t, err, ErrWeakPassword)

	principal, creds, err := p.Prepare("  Athlete@Gym.Test ", "longenough")
	require.NoError(t, err)
	assert.Equal(t, "athlete@gym.test", principal.Email)
	assert.NotEmpty(t, principal.ID)
	assert.Equal(t, principal.ID, creds.PrincipalID)
	assert.NotEqual(t, "longenough", creds.PasswordHash)
}
