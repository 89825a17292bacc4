package vault

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c, err := New(testKey)
	require.NoError(t, err)

	for _, plaintext := range []string{"", "sk-secret-key", "multi\nline\nvalue", strings.Repeat("x", 4096)} {
		sealed, err := c.Encrypt(plaintext)
		require.NoError(t, err)
		if plaintext != "" {
			require.NotContains(t, sealed, plaintext)
		}

		opened, err := c.Decrypt(sealed)
		require.NoError(t, err)
		require.Equal(t, plaintext, opened)
	}
}

func TestEncryptIsSaltedPerValue(t *testing.T) {
	c, err := New(testKey)
	require.NoError(t, err)

	a, err := c.Encrypt("same-value")
	require.NoError(t, err)
	b, err := c.Encrypt("same-value")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestDecryptRejectsTamperedValues(t *testing.T) {
	c, err := New(testKey)
	require.NoError(t, err)

	sealed, err := c.Encrypt("secret")
	require.NoError(t, err)

	// Flip one hex digit of the ciphertext tail.
	tampered := []byte(sealed)
	last := len(tampered) - 1
	if tampered[last] == 'a' {
		tampered[last] = 'b'
	} else {
		tampered[last] = 'a'
	}
	_, err = c.Decrypt(string(tampered))
	require.ErrorIs(t, err, ErrDecrypt)

	_, err = c.Decrypt("not-hex!!")
	require.ErrorIs(t, err, ErrDecrypt)
	_, err = c.Decrypt("abcd")
	require.ErrorIs(t, err, ErrDecrypt)
}

func TestDecryptRequiresSameMaster(t *testing.T) {
	c1, err := New(testKey)
	require.NoError(t, err)
	c2, err := New(strings.Repeat("ff", 32))
	require.NoError(t, err)

	sealed, err := c1.Encrypt("secret")
	require.NoError(t, err)
	_, err = c2.Decrypt(sealed)
	require.ErrorIs(t, err, ErrDecrypt)
}

func TestNewValidatesMasterKey(t *testing.T) {
	_, err := New("zz")
	require.Error(t, err)
	_, err = New("abcd")
	require.Error(t, err)
	_, err = New(testKey)
	require.NoError(t, err)
}
