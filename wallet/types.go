// Package wallet presents the daemon's RPC surface as typed Go methods.
// It does no networking of its own: every method encodes its arguments,
// runs the connection's call primitive, and decodes the result into the
// expected type.
package wallet

import (
	"encoding/json"
	"fmt"
)

// AssetType identifies which asset a balance or amount is denominated in.
type AssetType uint8

// Asset type 0 is the chain's native asset; the daemon assigns further
// ids as user-issued assets are registered.
const AssetCore AssetType = 0

// Asset is an amount of a specific asset.
type Asset struct {
	Amount int64     `json:"amount"`
	Type   AssetType `json:"asset_type"`
}

// UnmarshalJSON accepts both the structured form
// {"amount":500,"asset_type":0} and the bare-number shorthand 500 that
// older daemons return from getbalance (implying the core asset).
func (a *Asset) UnmarshalJSON(data []byte) error {
	var amount int64
	if err := json.Unmarshal(data, &amount); err == nil {
		a.Amount = amount
		a.Type = AssetCore
		return nil
	}
	type asset Asset // shed the method set to avoid recursing
	var full asset
	if err := json.Unmarshal(data, &full); err != nil {
		return err
	}
	*a = Asset(full)
	return nil
}

func (a Asset) String() string {
	return fmt.Sprintf("%d (asset %d)", a.Amount, a.Type)
}

// TransactionID names a transaction on the chain.
type TransactionID string

// SignedTransaction is the daemon's record of a transaction. Operations
// stay raw: the client relays them, it does not interpret them.
type SignedTransaction struct {
	ID         TransactionID     `json:"id"`
	Operations []json.RawMessage `json:"operations,omitempty"`
	Signatures []string          `json:"signatures,omitempty"`
}

// BlockHeader is the signed header of one block.
type BlockHeader struct {
	Number    uint32 `json:"block_num"`
	Previous  string `json:"previous"`
	Timestamp int64  `json:"timestamp"` // unix seconds
	Signee    string `json:"signee,omitempty"`
}
