package walletd

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"walletrpc/wallet"
	"walletrpc/wire"
)

// Daemon-reported failure codes the simulator shares with real deployments.
const (
	CodeInsufficientFunds  int64 = 1
	CodeBadCredentials     int64 = 2
	CodeUnknownTransaction int64 = 3
	CodeBlockNotFound      int64 = 4
)

// Simulator is an in-memory wallet behind the daemon's method set. One
// instance backs all connections of the server it is attached to.
type Simulator struct {
	Username string
	Password string

	mu       sync.Mutex
	balances map[wallet.AssetType]int64
	txs      map[wallet.TransactionID]wallet.SignedTransaction
	blocks   map[uint32]wallet.BlockHeader
	nonce    uint64
}

// NewSimulator seeds a wallet with the given core-asset balance and a
// genesis block.
func NewSimulator(coreBalance int64) *Simulator {
	w := &Simulator{
		Username: "wallet",
		Password: "password",
		balances: map[wallet.AssetType]int64{wallet.AssetCore: coreBalance},
		txs:      make(map[wallet.TransactionID]wallet.SignedTransaction),
		blocks:   make(map[uint32]wallet.BlockHeader),
	}
	w.blocks[0] = wallet.BlockHeader{
		Number:    0,
		Previous:  "",
		Timestamp: time.Now().Unix(),
	}
	return w
}

// Attach registers the simulator's handlers on s.
func (w *Simulator) Attach(s *Server) {
	s.Handle("login", w.login)
	s.Handle("transfer", w.transfer)
	s.Handle("getbalance", w.getBalance)
	s.Handle("get_transaction", w.getTransaction)
	s.Handle("getblock", w.getBlock)
	s.Handle("validateaddress", w.validateAddress)
	s.Handle("import_bitcoin_wallet", w.importBitcoinWallet)
}

// SetBalance overwrites a balance, for test setup.
func (w *Simulator) SetBalance(at wallet.AssetType, amount int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balances[at] = amount
}

// AddBlock makes a block available to getblock.
func (w *Simulator) AddBlock(h wallet.BlockHeader) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.blocks[h.Number] = h
}

func (w *Simulator) login(_ context.Context, params []json.RawMessage) (any, error) {
	var username, password string
	if err := decodeParams(params, &username, &password); err != nil {
		return nil, err
	}
	if username != w.Username || password != w.Password {
		return nil, wire.Errorf(CodeBadCredentials, "bad credentials")
	}
	return true, nil
}

func (w *Simulator) transfer(_ context.Context, params []json.RawMessage) (any, error) {
	var amount wallet.Asset
	var to string
	if err := decodeParams(params, &amount, &to); err != nil {
		return nil, err
	}
	if _, err := wallet.ParseAddress(to); err != nil {
		return nil, wire.Errorf(wire.CodeInvalidParams, "bad address: %s", err)
	}
	if amount.Amount <= 0 {
		return nil, wire.Errorf(wire.CodeInvalidParams, "transfer amount must be positive")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.balances[amount.Type] < amount.Amount {
		return nil, wire.Errorf(CodeInsufficientFunds, "insufficient funds")
	}
	w.balances[amount.Type] -= amount.Amount

	w.nonce++
	digest := sha256.Sum256(fmt.Appendf(nil, "%d:%d:%s:%d", amount.Amount, amount.Type, to, w.nonce))
	id := wallet.TransactionID(hex.EncodeToString(digest[:20]))
	w.txs[id] = wallet.SignedTransaction{ID: id}
	return id, nil
}

func (w *Simulator) getBalance(_ context.Context, params []json.RawMessage) (any, error) {
	var at wallet.AssetType
	if err := decodeParams(params, &at); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return wallet.Asset{Amount: w.balances[at], Type: at}, nil
}

func (w *Simulator) getTransaction(_ context.Context, params []json.RawMessage) (any, error) {
	var id wallet.TransactionID
	if err := decodeParams(params, &id); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	trx, ok := w.txs[id]
	if !ok {
		return nil, wire.Errorf(CodeUnknownTransaction, "unknown transaction %s", id)
	}
	return trx, nil
}

func (w *Simulator) getBlock(_ context.Context, params []json.RawMessage) (any, error) {
	var num uint32
	if err := decodeParams(params, &num); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	header, ok := w.blocks[num]
	if !ok {
		return nil, wire.Errorf(CodeBlockNotFound, "block %d not found", num)
	}
	return header, nil
}

func (w *Simulator) validateAddress(_ context.Context, params []json.RawMessage) (any, error) {
	var addr string
	if err := decodeParams(params, &addr); err != nil {
		return nil, err
	}
	_, err := wallet.ParseAddress(addr)
	return err == nil, nil
}

func (w *Simulator) importBitcoinWallet(_ context.Context, params []json.RawMessage) (any, error) {
	var path, password string
	if err := decodeParams(params, &path, &password); err != nil {
		return nil, err
	}
	if path == "" {
		return nil, wire.Errorf(wire.CodeInvalidParams, "wallet path required")
	}
	// The simulator holds no encrypted keys; any non-empty passphrase
	// "succeeds" so client flows can be exercised end to end.
	return password != "", nil
}

// decodeParams unmarshals positional params into the given pointers.
func decodeParams(params []json.RawMessage, dst ...any) error {
	if len(params) != len(dst) {
		return wire.Errorf(wire.CodeInvalidParams, "want %d params, got %d", len(dst), len(params))
	}
	for i, p := range params {
		if err := json.Unmarshal(p, dst[i]); err != nil {
			return wire.Errorf(wire.CodeInvalidParams, "param %d: %s", i, err)
		}
	}
	return nil
}
