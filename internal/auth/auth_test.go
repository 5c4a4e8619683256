package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintParse(t *testing.T) {
	token, err := Mint("s3cret", "cli", []string{"admin"}, time.Minute, time.Now())
	require.NoError(t, err)

	p, err := Parse(token, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, Principal{Subject: "cli", Roles: []string{"admin"}}, p)

	_, err = Parse(token, "other")
	assert.Error(t, err)
	_, err = Parse(token, "")
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestMintValidation(t *testing.T) {
	_, err := Mint("", "cli", nil, time.Minute, time.Now())
	assert.ErrorIs(t, err, ErrNoSecret)
	_, err = Mint("s3cret", "", nil, time.Minute, time.Now())
	assert.ErrorIs(t, err, ErrNoSubject)
}

func TestExpiredToken(t *testing.T) {
	token, err := Mint("s3cret", "cli", nil, time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = Parse(token, "s3cret")
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)
	_, ok = BearerToken("Basic abc")
	assert.False(t, ok)
	_, ok = BearerToken("bearer")
	assert.False(t, ok)
}

func TestMinterReusesToken(t *testing.T) {
	now := time.Now()
	m := &Minter{Secret: "s3cret", Subject: "cli", TTL: time.Hour, Now: func() time.Time { return now }}
	first, err := m.Token()
	require.NoError(t, err)
	second, err := m.Token()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	now = now.Add(55 * time.Minute)
	third, err := m.Token()
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}
