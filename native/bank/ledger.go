package bank

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"stakingcore/core/events"
	nativecommon "stakingcore/native/common"
)

// NativeAsset identifies the chain's native currency inside the ledger.
var NativeAsset = common.Address{}

// State is the subset of the state manager used by the token ledger.
type State interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var (
	errNilState            = errors.New("bank: state not configured")
	errUnknownToken        = errors.New("bank: unknown token")
	errTokenExists         = errors.New("bank: token already registered")
	errInvalidAmount       = errors.New("bank: invalid amount")
	errInsufficientBalance = errors.New("bank: insufficient balance")
	errInsufficientAllow   = errors.New("bank: insufficient allowance")
	errSupplyOverflow      = errors.New("bank: total supply exceeds uint256")
	errWrappedUnset        = errors.New("bank: wrapped native token not configured")
)

// Token describes a registered asset.
type Token struct {
	Address  common.Address
	Symbol   string
	Decimals uint8
}

// Ledger tracks balances, allowances and supply for every registered token.
type Ledger struct {
	state   State
	emitter events.Emitter
	wrapped common.Address
}

// NewLedger constructs a ledger bound to the provided state. The native asset
// is registered implicitly.
func NewLedger(state State) *Ledger {
	return &Ledger{state: state, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event sink used for transfers and approvals.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetWrappedNative designates the token that wraps the native asset 1:1.
func (l *Ledger) SetWrappedNative(token common.Address) { l.wrapped = token }

// WrappedNative returns the configured wrapped native token.
func (l *Ledger) WrappedNative() common.Address { return l.wrapped }

// RegisterToken records token metadata. Registering the same address twice
// fails.
func (l *Ledger) RegisterToken(tok Token) error {
	if l.state == nil {
		return errNilState
	}
	if tok.Address == NativeAsset {
		return fmt.Errorf("bank: native asset is implicit")
	}
	if strings.TrimSpace(tok.Symbol) == "" {
		return fmt.Errorf("bank: token symbol required")
	}
	ok, err := l.state.KVGet(tokenMetaKey(tok.Address), nil)
	if err != nil {
		return err
	}
	if ok {
		return errTokenExists
	}
	return l.state.KVPut(tokenMetaKey(tok.Address), &tok)
}

// Token returns the metadata for the supplied address.
func (l *Ledger) Token(addr common.Address) (*Token, error) {
	if addr == NativeAsset {
		return &Token{Address: NativeAsset, Symbol: "ETH", Decimals: 18}, nil
	}
	if l.state == nil {
		return nil, errNilState
	}
	var tok Token
	ok, err := l.state.KVGet(tokenMetaKey(addr), &tok)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownToken, addr.Hex())
	}
	return &tok, nil
}

func (l *Ledger) ensureToken(addr common.Address) error {
	_, err := l.Token(addr)
	return err
}

func (l *Ledger) loadInt(key []byte) (*big.Int, error) {
	if l.state == nil {
		return nil, errNilState
	}
	value := new(big.Int)
	if _, err := l.state.KVGet(key, value); err != nil {
		return nil, err
	}
	return value, nil
}

// BalanceOf returns the account's balance of token.
func (l *Ledger) BalanceOf(token, account common.Address) (*big.Int, error) {
	return l.loadInt(balanceKey(token, account))
}

// TotalSupply returns the outstanding supply of token.
func (l *Ledger) TotalSupply(token common.Address) (*big.Int, error) {
	return l.loadInt(tokenSupplyKey(token))
}

// Allowance returns how much spender may pull from owner.
func (l *Ledger) Allowance(token, owner, spender common.Address) (*big.Int, error) {
	return l.loadInt(allowanceKey(token, owner, spender))
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errInvalidAmount
	}
	if err := nativecommon.CheckU256(amount); err != nil {
		return fmt.Errorf("%w: %v", errInvalidAmount, err)
	}
	return nil
}

func (l *Ledger) credit(token, account common.Address, amount *big.Int) error {
	balance, err := l.BalanceOf(token, account)
	if err != nil {
		return err
	}
	balance.Add(balance, amount)
	return l.state.KVPut(balanceKey(token, account), balance)
}

func (l *Ledger) debit(token, account common.Address, amount *big.Int) error {
	balance, err := l.BalanceOf(token, account)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", errInsufficientBalance, account.Hex(), balance, amount)
	}
	balance.Sub(balance, amount)
	return l.state.KVPut(balanceKey(token, account), balance)
}

// Transfer moves amount of token from one account to another. Zero amounts
// are accepted and emit no event.
func (l *Ledger) Transfer(token, from, to common.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if err := l.ensureToken(token); err != nil {
		return err
	}
	if amount.Sign() == 0 {
		return nil
	}
	if err := l.debit(token, from, amount); err != nil {
		return err
	}
	if err := l.credit(token, to, amount); err != nil {
		return err
	}
	l.emitter.Emit(events.TokenTransfer{Token: token, From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// Approve sets the allowance spender may pull from owner. A max-uint256
// allowance is never decremented.
func (l *Ledger) Approve(token, owner, spender common.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if err := l.ensureToken(token); err != nil {
		return err
	}
	if err := l.state.KVPut(allowanceKey(token, owner, spender), amount); err != nil {
		return err
	}
	l.emitter.Emit(events.TokenApproval{Token: token, Owner: owner, Spender: spender, Amount: new(big.Int).Set(amount)})
	return nil
}

// TransferFrom moves funds from owner to recipient using spender's allowance.
func (l *Ledger) TransferFrom(token, spender, owner, to common.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if spender != owner {
		allowance, err := l.Allowance(token, owner, spender)
		if err != nil {
			return err
		}
		if !nativecommon.IsMaxUint256(allowance) {
			if allowance.Cmp(amount) < 0 {
				return fmt.Errorf("%w: %s allows %s, needs %s", errInsufficientAllow, spender.Hex(), allowance, amount)
			}
			allowance.Sub(allowance, amount)
			if err := l.state.KVPut(allowanceKey(token, owner, spender), allowance); err != nil {
				return err
			}
		}
	}
	return l.Transfer(token, owner, to, amount)
}

// Mint credits new supply to the recipient.
func (l *Ledger) Mint(token, to common.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if err := l.ensureToken(token); err != nil {
		return err
	}
	if amount.Sign() == 0 {
		return nil
	}
	supply, err := l.TotalSupply(token)
	if err != nil {
		return err
	}
	supply.Add(supply, amount)
	if nativecommon.CheckU256(supply) != nil {
		return errSupplyOverflow
	}
	if err := l.state.KVPut(tokenSupplyKey(token), supply); err != nil {
		return err
	}
	if err := l.credit(token, to, amount); err != nil {
		return err
	}
	l.emitter.Emit(events.TokenTransfer{Token: token, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// Burn destroys amount from the holder's balance.
func (l *Ledger) Burn(token, from common.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if err := l.ensureToken(token); err != nil {
		return err
	}
	if amount.Sign() == 0 {
		return nil
	}
	if err := l.debit(token, from, amount); err != nil {
		return err
	}
	supply, err := l.TotalSupply(token)
	if err != nil {
		return err
	}
	supply.Sub(supply, amount)
	if supply.Sign() < 0 {
		return fmt.Errorf("bank: supply underflow for %s", token.Hex())
	}
	if err := l.state.KVPut(tokenSupplyKey(token), supply); err != nil {
		return err
	}
	l.emitter.Emit(events.TokenTransfer{Token: token, From: from, Amount: new(big.Int).Set(amount)})
	return nil
}

// Wrap converts native currency into the wrapped token. The native funds are
// escrowed at the wrapped token's address.
func (l *Ledger) Wrap(account common.Address, amount *big.Int) error {
	if l.wrapped == (common.Address{}) {
		return errWrappedUnset
	}
	if err := l.Transfer(NativeAsset, account, l.wrapped, amount); err != nil {
		return err
	}
	return l.Mint(l.wrapped, account, amount)
}

// Unwrap burns wrapped tokens and releases the escrowed native currency.
func (l *Ledger) Unwrap(account common.Address, amount *big.Int) error {
	if l.wrapped == (common.Address{}) {
		return errWrappedUnset
	}
	if err := l.Burn(l.wrapped, account, amount); err != nil {
		return err
	}
	return l.Transfer(NativeAsset, l.wrapped, account, amount)
}
