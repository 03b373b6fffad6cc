package exchange

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	c := NewCollection("Kraken", " binance ", "")
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"binance", "kraken"}, c.Names())
	assert.NoError(t, c.Lookup("kraken"))
	assert.NoError(t, c.Lookup("BINANCE"))

	err := c.Lookup("mtgox")
	require.ErrorIs(t, err, ErrNotInCollection)
	var nic *NotInCollectionError
	require.True(t, errors.As(err, &nic))
	assert.Equal(t, "mtgox", nic.Exchange)
	assert.EqualError(t, err, "mtgox is either an invalid exchange or has a broken API.")
}

func TestEmptyCollectionAcceptsAll(t *testing.T) {
	c := NewCollection()
	assert.True(t, c.Contains("anything"))
	assert.NoError(t, c.Check("a", "b"))
}

func TestCheckJoinsFailures(t *testing.T) {
	c := NewCollection("kraken")
	err := c.Check("kraken", "", "mtgox", "mtgox", "cryptsy")
	require.ErrorIs(t, err, ErrNotInCollection)
	assert.Contains(t, err.Error(), "mtgox is either")
	assert.Contains(t, err.Error(), "cryptsy is either")
	assert.Len(t, strings.Split(err.Error(), "\n"), 2)
}
