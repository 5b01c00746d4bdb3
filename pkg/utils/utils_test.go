package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress    = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	testContract   = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
)

func TestLocators(t *testing.T) {
	assert.Equal(t,
		"https://gemcase.vercel.app/view/evm/sepolia/"+testContract+"/42",
		TokenLocator("sepolia", testContract, 42))
	assert.Equal(t,
		"https://gemcase.vercel.app/view/evm/sepolia/"+testContract,
		CollectionLocator("sepolia", testContract))
	assert.Equal(t,
		"https://sepolia.etherscan.io/tx/0xabc",
		TxExplorerURL("sepolia", "0xabc"))
}

func TestWrongNetworkMessage(t *testing.T) {
	assert.Equal(t, "You are not connected to the Sepolia Test Network!", WrongNetworkMessage("sepolia"))
	assert.Equal(t, "You are not connected to the Holesky Test Network!", WrongNetworkMessage("holesky"))
}

func TestTokenLocatorDeterministic(t *testing.T) {
	assert.Equal(t, TokenLocator("sepolia", testContract, 7), TokenLocator("sepolia", testContract, 7))
	assert.NotEqual(t, TokenLocator("sepolia", testContract, 7), TokenLocator("sepolia", testContract, 8))
}

func TestSocialLink(t *testing.T) {
	assert.Equal(t, "https://twitter.com/epicnfts", SocialLink("epicnfts"))
	assert.Equal(t, "https://twitter.com/epicnfts", SocialLink("@epicnfts"))
}

func TestChainIDsEqual(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected bool
	}{
		{name: "identical", a: "0xaa36a7", b: "0xaa36a7", expected: true},
		{name: "case differs", a: "0xAA36A7", b: "0xaa36a7", expected: true},
		{name: "different chains", a: "0x1", b: "0xaa36a7", expected: false},
		{name: "not hex", a: "sepolia", b: "0xaa36a7", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ChainIDsEqual(tt.a, tt.b))
		})
	}
}

func TestIsPushURL(t *testing.T) {
	assert.True(t, IsPushURL("wss://node.example.com"))
	assert.True(t, IsPushURL("ws://127.0.0.1:8546"))
	assert.True(t, IsPushURL("/tmp/geth.ipc"))
	assert.False(t, IsPushURL("https://node.example.com"))
}

func TestParsePrivateKey(t *testing.T) {
	for _, input := range []string{testPrivateKey, "0x" + testPrivateKey} {
		key, err := ParsePrivateKey(input)
		require.NoError(t, err)
		assert.Equal(t, testAddress, DeriveAddress(key).Hex())
	}

	_, err := ParsePrivateKey("not-a-key")
	assert.Error(t, err)
}

func TestAddressesEqual(t *testing.T) {
	assert.True(t, AddressesEqual(testAddress, "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"))
	assert.False(t, AddressesEqual(testAddress, testContract))
}
