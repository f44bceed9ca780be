package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/glucokeeper/internal/crypto/sealer"
	"github.com/and161185/glucokeeper/internal/errs"
	"github.com/and161185/glucokeeper/internal/model"
)

func newSignatures(t *testing.T) (*Signatures, *fakeSigRepo) {
	t.Helper()
	s, err := sealer.New([]byte("master-key-for-tests-0123456789"))
	require.NoError(t, err)
	repo := &fakeSigRepo{}
	return NewSignatures(repo, s), repo
}

func TestSignatures_RotateSealsAtRest(t *testing.T) {
	t.Parallel()
	sigs, repo := newSignatures(t)
	ctx := context.Background()

	_, err := sigs.Latest(ctx)
	require.ErrorIs(t, err, errs.ErrUnavailable)

	created, err := sigs.Ensure(ctx)
	require.NoError(t, err)
	require.True(t, created)
	created, err = sigs.Ensure(ctx)
	require.NoError(t, err)
	require.False(t, created)
	require.Len(t, repo.sigs, 1)

	first, err := sigs.Latest(ctx)
	require.NoError(t, err)
	require.Len(t, first.Secret, signatureSize)
	require.False(t, bytes.Equal(first.Secret, repo.sigs[0].Secret), "stored secret must be sealed")

	second, err := sigs.Rotate(ctx)
	require.NoError(t, err)
	latest, err := sigs.Latest(ctx)
	require.NoError(t, err)
	require.Equal(t, second.ID, latest.ID)
	require.Equal(t, second.Secret, latest.Secret)
	require.NotEqual(t, first.ID, latest.ID)
}

func TestSignatures_WrongMasterKey(t *testing.T) {
	t.Parallel()
	sigs, repo := newSignatures(t)
	_, err := sigs.Rotate(context.Background())
	require.NoError(t, err)

	other, err := sealer.New([]byte("another-master-key-0123456789ab"))
	require.NoError(t, err)
	_, err = NewSignatures(repo, other).Latest(context.Background())
	require.Error(t, err)
}

func TestSignatures_FeedTokenManager(t *testing.T) {
	t.Parallel()
	sigs, _ := newSignatures(t)
	_, err := sigs.Rotate(context.Background())
	require.NoError(t, err)

	users := newFakeUsers()
	u := seedUser(t, users, "ada", "lovelace", "pw")
	m := NewTokenManager(users, newFakeTokens(), sigs)
	tok, err := m.IssueForUser(context.Background(), u, model.CapabilitiesOf(model.CapProfile), days(1), "")
	require.NoError(t, err)

	latest, _ := sigs.Latest(context.Background())
	require.Equal(t, latest.ID, tok.SignatureID)
}
