package notifications

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	for _, typ := range Types() {
		t.Run(string(typ), func(t *testing.T) {
			got, err := ParseType(string(typ))
			require.NoError(t, err)
			assert.Equal(t, typ, got)
		})
	}

	for _, raw := range []string{"", "INFO", "alert", "booking "} {
		t.Run("invalid "+raw, func(t *testing.T) {
			_, err := ParseType(raw)
			assert.ErrorIs(t, err, ErrInvalidType)
		})
	}
}

func TestTypes_ClosedSet(t *testing.T) {
	types := Types()
	assert.Len(t, types, 10)

	types[0] = "mutated"
	assert.Equal(t, TypeInfo, Types()[0], "Types must return a copy")
}

func TestType_Tone(t *testing.T) {
	for _, typ := range Types() {
		assert.NotPanics(t, func() { _ = typ.Tone() }, "type %s", typ)
	}
	assert.Equal(t, ToneCritical, TypeError.Tone())
	assert.Equal(t, TonePositive, TypePayment.Tone())
	assert.Equal(t, ToneCaution, TypeReminder.Tone())
	assert.Equal(t, ToneNeutral, TypeSystem.Tone())
	assert.Panics(t, func() { _ = Type("bogus").Tone() })
}

func TestNotification_MarkAsRead(t *testing.T) {
	first := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	n := Notification{ID: "notif-1", UserID: "user-1", Type: TypeInfo}

	assert.True(t, n.MarkAsRead(first))
	assert.True(t, n.IsRead)
	require.NotNil(t, n.ReadAt)
	assert.Equal(t, first, *n.ReadAt)

	assert.False(t, n.MarkAsRead(second), "second transition must be a no-op")
	assert.True(t, n.IsRead)
	assert.Equal(t, first, *n.ReadAt)
}

func TestIsDomainError(t *testing.T) {
	assert.True(t, IsDomainError(ErrNotFound))
	assert.True(t, IsDomainError(ErrForbidden))
	assert.True(t, IsDomainError(ErrDuplicateID))
	assert.True(t, IsDomainError(ErrInvalidFilter))
	assert.False(t, IsDomainError(nil))
	assert.False(t, IsDomainError(assert.AnError))
}
