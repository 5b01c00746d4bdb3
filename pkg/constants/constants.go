package constants

import "time"

const (
	ReceiptPollInterval   = 2 * time.Second  // delay between receipt lookups while awaiting confirmation
	LogPollInterval       = 4 * time.Second  // delay between eth_getLogs polls when push subscriptions are unavailable
	CallContractTimeout   = 10 * time.Second // timeout for contract call
	WalletRequestTimeout  = 30 * time.Second // timeout for non-interactive wallet requests
	HealthCheckTimeout    = 3 * time.Second  // timeout for endpoint health check
	RefreshTimeout        = 15 * time.Second // timeout for an event-triggered count refresh
	BridgeWriteTimeout    = 10 * time.Second // timeout for a wallet bridge frame write
	ResubscribeBackoff    = 30 * time.Second // upper bound between event subscription renewal attempts
	ChainlistTimeout      = 15 * time.Second // timeout for the chainlist endpoint feed
	DialTimeout           = 30 * time.Second // overall budget for endpoint selection at startup
	MaxResponseBodySize   = 10 * 1024 * 1024 // maximum bridge frame size in bytes (10MB)
	MaxRetries            = 10               // consecutive RPC failures tolerated while waiting
	SubscriptionBufferLen = 16               // buffered logs per subscription
)

// Network Types
const (
	NetworkSepolia = "sepolia"
)

// SepoliaChainID is the hex chain id the wallet must report
const SepoliaChainID = "0xaa36a7"

// mapping from network name to hex chain ID
var NetworkToChainID = map[string]string{
	NetworkSepolia: SepoliaChainID,
}

// ChainlistURL lists public RPC endpoints per chain id
const ChainlistURL = "https://chainlist.org/rpcs.json"

var OfficialRPCEndpoints = map[string][]string{
	NetworkSepolia: {
		"wss://ethereum-sepolia-rpc.publicnode.com",
		"https://ethereum-sepolia-rpc.publicnode.com",
		"https://rpc.sepolia.org",
	},
}

// Contract surface
const (
	MintMethod      = "makeAnEpicNFT"
	MintCountMethod = "getMintCounts"
	MintedEvent     = "NewEpicNFTMinted"
)

// Link templates
const (
	TokenLocatorFormat      = "https://gemcase.vercel.app/view/evm/%s/%s/%d"
	CollectionLocatorFormat = "https://gemcase.vercel.app/view/evm/%s/%s"
	TxExplorerFormat        = "https://%s.etherscan.io/tx/%s"
	SocialLinkFormat        = "https://twitter.com/%s"
)

// User-facing messages
const (
	MsgInstallWallet = "Get MetaMask! A wallet is required to connect."
	MsgDeclined      = "The wallet request was declined."
	MsgWrongNetwork  = "You are not connected to the %s Test Network!" // network display name
	MsgMinted        = "We've sent the NFT to your wallet. It can take a few minutes to show up on gemcase. Here's the link:"
	MsgMintSubmitted = "Mining... please wait."
	MsgMintConfirmed = "Mined, see transaction:"
)
