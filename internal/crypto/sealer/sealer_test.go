package sealer

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_ShortKey(t *testing.T) {
	t.Parallel()
	_, err := New([]byte("short"))
	if !errors.Is(err, ErrShortMasterKey) {
		t.Fatalf("want ErrShortMasterKey, got %v", err)
	}
}

func TestSealOpen_RoundTrip(t *testing.T) {
	t.Parallel()

	s, err := New([]byte("0123456789abcdef-master"))
	require.NoError(t, err)

	plain := []byte("rotating-signature-secret")
	a, err := s.Seal(plain)
	require.NoError(t, err)
	b, err := s.Seal(plain)
	require.NoError(t, err)
	require.False(t, bytes.Equal(a, b), "nonce must be random")

	got, err := s.Open(a)
	require.NoError(t, err)
	require.Equal(t, plain, got)
}

func TestOpen_TamperedOrForeignKey(t *testing.T) {
	t.Parallel()

	s1, err := New([]byte("0123456789abcdef-one"))
	require.NoError(t, err)
	s2, err := New([]byte("0123456789abcdef-two"))
	require.NoError(t, err)

	sealed, err := s1.Seal([]byte("secret"))
	require.NoError(t, err)

	_, err = s2.Open(sealed)
	require.Error(t, err)

	sealed[len(sealed)-1] ^= 0xff
	_, err = s1.Open(sealed)
	require.Error(t, err)

	_, err = s1.Open([]byte{1, 2, 3})
	require.Error(t, err)
}
