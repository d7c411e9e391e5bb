package user

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/yuzvak/flashsale-engine/internal/domain/errors"
)

func TestReservation(t *testing.T) {
	r := NewReservation("alice", "p1")

	next, err := r.Claim(2, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, next)
	assert.Equal(t, 0, r.UnitsClaimed, "Claim does not mutate")

	r.UnitsClaimed = next
	_, err = r.Claim(2, 3)
	assert.ErrorIs(t, err, domainErrors.ErrPerUserLimitExceeded)

	_, err = r.Claim(0, 3)
	assert.ErrorIs(t, err, domainErrors.ErrInvalidQuantity)

	assert.True(t, r.CanClaim(1, 3))
	assert.False(t, r.CanClaim(math.MaxInt, 3))
	_, err = r.Claim(math.MaxInt, 3)
	assert.ErrorIs(t, err, domainErrors.ErrPerUserLimitExceeded)

	assert.Equal(t, 1, r.Release(1))
	assert.Equal(t, 0, r.Release(5))
}
