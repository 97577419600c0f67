package seal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundtrip(t *testing.T) {
	t.Parallel()

	recipient, err := GenerateKeyPair()
	require.NoError(t, err)

	sealed, err := Seal(recipient.PublicKey(), []byte(`{"sdp":"v=0..."}`))
	require.NoError(t, err)
	require.NotContains(t, sealed, "sdp")

	plaintext, err := recipient.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, `{"sdp":"v=0..."}`, string(plaintext))
}

func TestOpenWithWrongKeyFails(t *testing.T) {
	t.Parallel()

	recipient, err := GenerateKeyPair()
	require.NoError(t, err)
	eavesdropper, err := GenerateKeyPair()
	require.NoError(t, err)

	sealed, err := Seal(recipient.PublicKey(), []byte("offer"))
	require.NoError(t, err)

	_, err = eavesdropper.Open(sealed)
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestParsePublicKeyRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := ParsePublicKey("not base64!!!")
	require.ErrorIs(t, err, ErrInvalidPublicKey)

	_, err = ParsePublicKey("c2hvcnQ=") // valid base64, wrong length
	require.ErrorIs(t, err, ErrInvalidPublicKey)
}

func TestSealRejectsInvalidRecipient(t *testing.T) {
	t.Parallel()

	_, err := Seal("bogus", []byte("payload"))
	require.ErrorIs(t, err, ErrInvalidPublicKey)
}
