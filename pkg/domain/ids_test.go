package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "bursary/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseApplicationID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseApplicationID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseReviewerID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseApplicationID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, ApplicationID(validUUID), id)
	})
}

// TestParseID_TrustBoundary validates that parsing rejects hostile input at
// API entry points.
func TestParseID_TrustBoundary(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE applications;--", true},
		{"path traversal", "../../../etc/passwd", true},
		{"oversized input", strings.Repeat("a", 1000), true},
		{"empty string", "", true},
		{"nil UUID", uuid.Nil.String(), true},
		{"whitespace only", "   ", true},
		{"uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReviewerID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

// TestIDJSONEncoding verifies IDs encode as UUID strings, not byte arrays.
func TestIDJSONEncoding(t *testing.T) {
	appID := NewApplicationID()

	encoded, err := json.Marshal(appID)
	require.NoError(t, err)
	assert.Equal(t, `"`+appID.String()+`"`, string(encoded))

	var decoded ApplicationID
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, appID, decoded)
}

// TestTypeDistinction verifies the compiler enforces type safety.
func TestTypeDistinction(t *testing.T) {
	appID := ApplicationID(uuid.New())
	reviewerID := ReviewerID(uuid.New())

	// These would fail to compile if types were interchangeable:
	// var _ ApplicationID = reviewerID   // compile error
	// var _ ReviewerID = appID           // compile error

	assert.NotEqual(t, uuid.UUID(appID), uuid.UUID(reviewerID))
}
