package sha256

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHasherHashDeterministic(t *testing.T) {
	t.Parallel()

	h := New()
	got, err := h.Hash([]byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", got)
}

func TestHasherHashPartsSeparatesFields(t *testing.T) {
	t.Parallel()

	h := New()
	a, err := h.HashParts("예비창업패키지", "사업화 자금 지원", "예비창업자")
	require.NoError(t, err)
	again, err := h.HashParts("예비창업패키지", "사업화 자금 지원", "예비창업자")
	require.NoError(t, err)
	require.Equal(t, a, again)
	require.Len(t, a, 64)

	shifted, err := h.HashParts("예비창업패키지사업화", " 자금 지원", "예비창업자")
	require.NoError(t, err)
	require.NotEqual(t, a, shifted)
}
