package wallet

import (
	"context"

	"walletrpc/rpc"
)

// Client is the typed facade over one daemon connection. Methods block
// until the daemon answers, the context expires, or the connection dies;
// they are safe to call concurrently and complete independently.
type Client struct {
	conn *rpc.Conn
}

// Dial connects to a wallet daemon at addr.
func Dial(addr string, opts ...rpc.Option) (*Client, error) {
	conn, err := rpc.Dial(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// NewClient wraps an existing connection. The client takes ownership:
// Close closes it.
func NewClient(conn *rpc.Conn) *Client {
	return &Client{conn: conn}
}

// Conn exposes the underlying connection for callers that need the raw
// primitive or lifecycle signals.
func (c *Client) Conn() *rpc.Conn {
	return c.conn
}

// Close tears down the connection. Idempotent.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Login authenticates the session.
func (c *Client) Login(ctx context.Context, username, password string) (bool, error) {
	var ok bool
	err := c.conn.Call(ctx, "login", &ok, username, password)
	return ok, err
}

// Transfer moves amount to the given address and returns the id of the
// transaction the daemon broadcast.
func (c *Client) Transfer(ctx context.Context, amount Asset, to Address) (TransactionID, error) {
	var id TransactionID
	err := c.conn.Call(ctx, "transfer", &id, amount, to.String())
	return id, err
}

// GetBalance reports the wallet's balance in the given asset.
func (c *Client) GetBalance(ctx context.Context, at AssetType) (Asset, error) {
	var balance Asset
	err := c.conn.Call(ctx, "getbalance", &balance, at)
	return balance, err
}

// GetTransaction fetches a transaction by id.
func (c *Client) GetTransaction(ctx context.Context, id TransactionID) (SignedTransaction, error) {
	var trx SignedTransaction
	err := c.conn.Call(ctx, "get_transaction", &trx, id)
	return trx, err
}

// GetBlock fetches the signed header of block num.
func (c *Client) GetBlock(ctx context.Context, num uint32) (BlockHeader, error) {
	var header BlockHeader
	err := c.conn.Call(ctx, "getblock", &header, num)
	return header, err
}

// ValidateAddress asks the daemon whether it considers addr valid.
func (c *Client) ValidateAddress(ctx context.Context, addr Address) (bool, error) {
	var ok bool
	err := c.conn.Call(ctx, "validateaddress", &ok, addr.String())
	return ok, err
}

// ImportBitcoinWallet imports keys from a Bitcoin wallet file readable
// by the daemon.
func (c *Client) ImportBitcoinWallet(ctx context.Context, walletPath, password string) (bool, error) {
	var ok bool
	err := c.conn.Call(ctx, "import_bitcoin_wallet", &ok, walletPath, password)
	return ok, err
}
