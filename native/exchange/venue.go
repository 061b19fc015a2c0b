package exchange

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"stakingcore/core/events"
	nativecommon "stakingcore/native/common"
)

// OrderStatus mirrors the venue's order lifecycle codes.
type OrderStatus uint8

const (
	OrderInvalid                 OrderStatus = 0
	OrderInvalidMakerAssetAmount OrderStatus = 1
	OrderInvalidTakerAssetAmount OrderStatus = 2
	OrderFillable                OrderStatus = 3
	OrderExpired                 OrderStatus = 4
	OrderFullyFilled             OrderStatus = 5
	OrderCancelled               OrderStatus = 6
)

func (s OrderStatus) String() string {
	switch s {
	case OrderInvalidMakerAssetAmount:
		return "INVALID_MAKER_ASSET_AMOUNT"
	case OrderInvalidTakerAssetAmount:
		return "INVALID_TAKER_ASSET_AMOUNT"
	case OrderFillable:
		return "FILLABLE"
	case OrderExpired:
		return "EXPIRED"
	case OrderFullyFilled:
		return "FULLY_FILLED"
	case OrderCancelled:
		return "CANCELLED"
	default:
		return "INVALID"
	}
}

// OrderInfo reports the status of an order.
type OrderInfo struct {
	Status            OrderStatus
	Hash              common.Hash
	TakerAmountFilled *big.Int
}

// FillResults are the amounts exchanged by a fill.
type FillResults struct {
	MakerAmountFilled *big.Int
	TakerAmountFilled *big.Int
	MakerFeePaid      *big.Int
	TakerFeePaid      *big.Int
}

// WalletValidator validates Wallet signatures for orders made by a contract
// account. Returning an error rejects the fill.
type WalletValidator interface {
	ValidateOrderSignature(order Order, hash common.Hash, signature []byte) error
}

// State is the subset of the state manager used by the venue.
type State interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	Atomic(fn func() error) error
}

// Bank settles fills. Maker funds are pulled through the allowance granted to
// the venue address.
type Bank interface {
	Transfer(token, from, to common.Address, amount *big.Int) error
	TransferFrom(token, spender, owner, to common.Address, amount *big.Int) error
}

var (
	errOrderNotFillable = errors.New("exchange: order not fillable")
	errInvalidTaker     = errors.New("exchange: invalid taker")
	errInvalidSender    = errors.New("exchange: invalid sender")
	errInvalidCanceller = errors.New("exchange: only the maker may cancel")
	errNoValidator      = errors.New("exchange: no wallet validator for maker")
	errInvalidFill      = errors.New("exchange: invalid fill amount")
)

var (
	filledPrefix    = []byte("exchange/filled/")
	cancelledPrefix = []byte("exchange/cancelled/")
)

func filledKey(hash common.Hash) []byte {
	return append(append([]byte{}, filledPrefix...), hash.Bytes()...)
}

func cancelledKey(hash common.Hash) []byte {
	return append(append([]byte{}, cancelledPrefix...), hash.Bytes()...)
}

// Venue is an order book-less exchange settling signed orders.
type Venue struct {
	address    common.Address
	state      State
	bank       Bank
	emitter    events.Emitter
	nowFn      func() time.Time
	mu         sync.RWMutex
	validators map[common.Address]WalletValidator
}

// NewVenue constructs a venue at address. The address is the spender maker
// allowances must be granted to.
func NewVenue(address common.Address, state State, b Bank) *Venue {
	return &Venue{
		address:    address,
		state:      state,
		bank:       b,
		emitter:    events.NoopEmitter{},
		nowFn:      time.Now,
		validators: make(map[common.Address]WalletValidator),
	}
}

// Address returns the venue address.
func (v *Venue) Address() common.Address { return v.address }

// SetEmitter configures the event sink.
func (v *Venue) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		v.emitter = events.NoopEmitter{}
		return
	}
	v.emitter = emitter
}

// SetNowFunc overrides the clock used for expirations.
func (v *Venue) SetNowFunc(now func() time.Time) {
	if now != nil {
		v.nowFn = now
	}
}

// RegisterWallet installs the validator consulted for Wallet signatures made
// by account.
func (v *Venue) RegisterWallet(account common.Address, validator WalletValidator) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if validator == nil {
		delete(v.validators, account)
		return
	}
	v.validators[account] = validator
}

func (v *Venue) filled(hash common.Hash) (*big.Int, error) {
	value := new(big.Int)
	if _, err := v.state.KVGet(filledKey(hash), value); err != nil {
		return nil, err
	}
	return value, nil
}

func (v *Venue) cancelled(hash common.Hash) (bool, error) {
	return v.state.KVGet(cancelledKey(hash), nil)
}

// GetOrderInfo returns the status, hash and filled taker amount of order.
func (v *Venue) GetOrderInfo(order Order) (OrderInfo, error) {
	order = order.Normalised()
	hash := order.Hash()
	filled, err := v.filled(hash)
	if err != nil {
		return OrderInfo{}, err
	}
	info := OrderInfo{Hash: hash, TakerAmountFilled: filled}
	switch {
	case order.MakerAmount.Sign() == 0:
		info.Status = OrderInvalidMakerAssetAmount
		return info, nil
	case order.TakerAmount.Sign() == 0:
		info.Status = OrderInvalidTakerAssetAmount
		return info, nil
	case filled.Cmp(order.TakerAmount) >= 0:
		info.Status = OrderFullyFilled
		return info, nil
	case uint64(v.nowFn().Unix()) >= order.Expiration:
		info.Status = OrderExpired
		return info, nil
	}
	cancelled, err := v.cancelled(hash)
	if err != nil {
		return OrderInfo{}, err
	}
	if cancelled {
		info.Status = OrderCancelled
		return info, nil
	}
	info.Status = OrderFillable
	return info, nil
}

// IsValidSignature reports whether signature authorises hash for order.
func (v *Venue) IsValidSignature(order Order, hash common.Hash, signature []byte) error {
	kind, payload, err := splitSignature(signature)
	if err != nil {
		return err
	}
	switch kind {
	case SignatureEthSign:
		signer, err := RecoverEthSigner(hash, payload)
		if err != nil {
			return err
		}
		if signer != order.Maker {
			return errSignatureMismatch
		}
		return nil
	case SignatureWallet:
		v.mu.RLock()
		validator := v.validators[order.Maker]
		v.mu.RUnlock()
		if validator == nil {
			return errNoValidator
		}
		if err := validator.ValidateOrderSignature(order, hash, payload); err != nil {
			return fmt.Errorf("exchange: wallet rejected order: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %#x", errSignatureUnsupported, uint8(kind))
	}
}

func proportional(amount, numerator, denominator *big.Int) *big.Int {
	if denominator.Sign() == 0 {
		return big.NewInt(0)
	}
	return nativecommon.MulDiv(amount, numerator, denominator)
}

// FillOrder fills up to takerFillAmount of order on behalf of taker. The
// signature is verified before any balance moves, and a failed leg unwinds
// the whole fill.
func (v *Venue) FillOrder(taker common.Address, order Order, takerFillAmount *big.Int, signature []byte) (FillResults, error) {
	var results FillResults
	err := v.state.Atomic(func() error {
		var err error
		results, err = v.fillOrder(taker, order, takerFillAmount, signature)
		return err
	})
	if err != nil {
		return FillResults{}, err
	}
	return results, nil
}

func (v *Venue) fillOrder(taker common.Address, order Order, takerFillAmount *big.Int, signature []byte) (FillResults, error) {
	order = order.Normalised()
	if takerFillAmount == nil || takerFillAmount.Sign() <= 0 || nativecommon.CheckU256(takerFillAmount) != nil {
		return FillResults{}, errInvalidFill
	}
	info, err := v.GetOrderInfo(order)
	if err != nil {
		return FillResults{}, err
	}
	if info.Status != OrderFillable {
		return FillResults{}, fmt.Errorf("%w: %s", errOrderNotFillable, info.Status)
	}
	if order.Taker != (common.Address{}) && order.Taker != taker {
		return FillResults{}, errInvalidTaker
	}
	if order.Sender != (common.Address{}) && order.Sender != taker {
		return FillResults{}, errInvalidSender
	}
	if err := v.IsValidSignature(order, info.Hash, signature); err != nil {
		return FillResults{}, err
	}
	remaining := new(big.Int).Sub(order.TakerAmount, info.TakerAmountFilled)
	takerFilled := new(big.Int).Set(takerFillAmount)
	if takerFilled.Cmp(remaining) > 0 {
		takerFilled = remaining
	}
	results := FillResults{
		TakerAmountFilled: takerFilled,
		MakerAmountFilled: proportional(order.MakerAmount, takerFilled, order.TakerAmount),
		MakerFeePaid:      proportional(order.MakerFee, takerFilled, order.TakerAmount),
		TakerFeePaid:      proportional(order.TakerFee, takerFilled, order.TakerAmount),
	}
	if err := v.state.KVPut(filledKey(info.Hash), new(big.Int).Add(info.TakerAmountFilled, takerFilled)); err != nil {
		return FillResults{}, err
	}
	if err := v.bank.TransferFrom(order.MakerToken, v.address, order.Maker, taker, results.MakerAmountFilled); err != nil {
		return FillResults{}, err
	}
	if err := v.bank.Transfer(order.TakerToken, taker, order.Maker, results.TakerAmountFilled); err != nil {
		return FillResults{}, err
	}
	if results.MakerFeePaid.Sign() > 0 {
		if err := v.bank.TransferFrom(order.MakerToken, v.address, order.Maker, order.FeeRecipient, results.MakerFeePaid); err != nil {
			return FillResults{}, err
		}
	}
	if results.TakerFeePaid.Sign() > 0 {
		if err := v.bank.Transfer(order.TakerToken, taker, order.FeeRecipient, results.TakerFeePaid); err != nil {
			return FillResults{}, err
		}
	}
	v.emitter.Emit(events.OrderFilled{
		OrderHash:   info.Hash,
		Maker:       order.Maker,
		Taker:       taker,
		MakerToken:  order.MakerToken,
		TakerToken:  order.TakerToken,
		MakerFilled: new(big.Int).Set(results.MakerAmountFilled),
		TakerFilled: new(big.Int).Set(results.TakerAmountFilled),
	})
	return results, nil
}

// CancelOrder marks order as cancelled. Only the maker (or the order's
// designated sender) may cancel. Cancelling an order that is no longer
// fillable is a no-op.
func (v *Venue) CancelOrder(caller common.Address, order Order) error {
	return v.state.Atomic(func() error {
		return v.cancelOrder(caller, order)
	})
}

func (v *Venue) cancelOrder(caller common.Address, order Order) error {
	order = order.Normalised()
	expected := order.Maker
	if order.Sender != (common.Address{}) {
		expected = order.Sender
	}
	if caller != expected {
		return errInvalidCanceller
	}
	info, err := v.GetOrderInfo(order)
	if err != nil {
		return err
	}
	if info.Status != OrderFillable {
		return nil
	}
	if err := v.state.KVPut(cancelledKey(info.Hash), true); err != nil {
		return err
	}
	v.emitter.Emit(events.OrderCancelled{OrderHash: info.Hash, Maker: order.Maker, Canceller: caller})
	return nil
}
