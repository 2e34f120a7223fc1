// Package ports defines the semantic type tags attached to node ports and
// the bounded transformation chains that bridge mismatched tags. Tags exist
// only for connection validation; they are never persisted with run data.
package ports

// Type is a semantic tag on a port, e.g. "address" or "amount".
type Type string

const (
	Address   Type = "address"    // checksummed chain address
	Amount    Type = "amount"     // decimal string amount
	Number    Type = "number"     // float64
	Text      Type = "text"       // plain string
	TokenInfo Type = "token-info" // map with symbol/address/decimals
	Quote     Type = "quote"      // map with src/dst amounts and price
	TxRef     Type = "tx-ref"     // transaction reference string
	ChainID   Type = "chain-id"   // chain identifier string
	JSONBlob  Type = "json-blob"  // arbitrary map or serialized JSON
)

// Port is a named, typed input or output slot on a node.
type Port struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}
