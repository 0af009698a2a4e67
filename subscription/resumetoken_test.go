package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueValidateRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer([]byte("test-secret"), time.Hour)
	record := Record{ID: "sub-1", TransportID: "transport-a", Contract: "0xAbC", Path: "0xhash/file.txt"}

	token, err := issuer.Issue(record)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, record.ID, claims.SubscriptionID)
	assert.Equal(t, record.Contract, claims.Contract)
	assert.Equal(t, record.Path, claims.Path)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	issuer := NewTokenIssuer([]byte("test-secret"), -time.Hour)
	token, err := issuer.Issue(Record{ID: "sub-1"})
	require.NoError(t, err)

	_, err = issuer.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidResumeToken)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenIssuer([]byte("test-secret"), time.Hour)
	token, err := issuer.Issue(Record{ID: "sub-1"})
	require.NoError(t, err)

	other := NewTokenIssuer([]byte("other-secret"), time.Hour)
	_, err = other.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidResumeToken)
}

func TestValidateRejectsGarbageToken(t *testing.T) {
	issuer := NewTokenIssuer([]byte("test-secret"), time.Hour)
	_, err := issuer.Validate("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidResumeToken)
}
