package asset

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eth = "0x049d36570d4e46f48e99674bd3fcc84644ddd6b96f7c741b1562b82f9e004dc7"

func TestParseCanonical(t *testing.T) {
	id, err := Parse(eth)
	require.NoError(t, err)
	assert.Equal(t, eth, id.String())
	assert.Equal(t, "0x49d36570d4e46f48e99674bd3fcc84644ddd6b96f7c741b1562b82f9e004dc7", id.Felt())
}

func TestParseRejectsBadShapes(t *testing.T) {
	cases := map[string]error{
		"049d36570d4e46f48e99674bd3fcc84644ddd6b96f7c741b1562b82f9e004dc7":    ErrPrefix,
		"0x49d36570d4e46f48e99674bd3fcc84644ddd6b96f7c741b1562b82f9e004dc7":   ErrLength,
		"0x049d36570d4e46f48e99674bd3fcc84644ddd6b96f7c741b1562b82f9e004dc71": ErrLength,
		"0x049d36570d4e46f48e99674bd3fcc84644ddd6b96f7c741b1562b82f9e004dzz":  ErrHex,
		"0X049d36570d4e46f48e99674bd3fcc84644ddd6b96f7c741b1562b82f9e004dc7":  ErrPrefix,
		"ETH": ErrPrefix,
		"":    ErrPrefix,
	}
	for input, want := range cases {
		_, err := Parse(input)
		require.Error(t, err, input)
		assert.True(t, errors.Is(err, want), "input %q: got %v want %v", input, err, want)
	}
}

func TestParseLoosePadsShortAddresses(t *testing.T) {
	id, err := ParseLoose("0x49d36570d4e46f48e99674bd3fcc84644ddd6b96f7c741b1562b82f9e004dc7")
	require.NoError(t, err)
	assert.Equal(t, eth, id.String())

	_, err = ParseLoose("0X1234")
	assert.ErrorIs(t, err, ErrPrefix)

	_, err = ParseLoose("0x")
	assert.ErrorIs(t, err, ErrLength)
}

func TestFromBigAndEquality(t *testing.T) {
	id, err := FromBig(big.NewInt(0x1234))
	require.NoError(t, err)
	assert.Equal(t, "0x0000000000000000000000000000000000000000000000000000000000001234", id.String())

	other := MustParse(id.String())
	assert.Equal(t, id, other)
	assert.False(t, id.IsZero())

	_, err = FromBig(new(big.Int).Lsh(big.NewInt(1), 256))
	assert.Error(t, err)
}

func TestTextRoundTripUsesStrictParsing(t *testing.T) {
	var id ID
	require.NoError(t, id.UnmarshalText([]byte(eth)))
	out, err := id.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, eth, string(out))
	assert.Error(t, id.UnmarshalText([]byte("0x1234")))
}
