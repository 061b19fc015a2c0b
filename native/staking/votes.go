package staking

import (
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"stakingcore/core/events"
)

// Delegate points the caller's voting weight at delegatee. Weight equals the
// receipt balance and follows every later balance change.
func (e *Engine) Delegate(caller, delegatee common.Address) error {
	return e.state.Atomic(func() error {
		account, err := e.loadAccount(caller)
		if err != nil {
			return err
		}
		previous := account.Delegate
		if previous == delegatee {
			return nil
		}
		account.Delegate = delegatee
		if err := e.putAccount(caller, account); err != nil {
			return err
		}
		e.emitter.Emit(events.StakingDelegateChanged{Delegator: caller, FromDelegate: previous, ToDelegate: delegatee})
		return e.moveVotes(previous, delegatee, account.Balance)
	})
}

// Delegates returns the current delegate of account.
func (e *Engine) Delegates(account common.Address) (common.Address, error) {
	acct, err := e.loadAccount(account)
	if err != nil {
		return common.Address{}, err
	}
	return acct.Delegate, nil
}

func (e *Engine) loadCheckpoints(delegate common.Address) ([]checkpoint, error) {
	var cps []checkpoint
	if _, err := e.state.KVGet(checkpointsKey(delegate), &cps); err != nil {
		return nil, err
	}
	return cps, nil
}

// GetVotes returns the current votes delegated to account.
func (e *Engine) GetVotes(account common.Address) (*big.Int, error) {
	cps, err := e.loadCheckpoints(account)
	if err != nil {
		return nil, err
	}
	if len(cps) == 0 {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(cps[len(cps)-1].Votes), nil
}

// GetPriorVotes returns the votes account held at the end of timestamp. The
// timestamp must be in the past.
func (e *Engine) GetPriorVotes(account common.Address, timestamp uint64) (*big.Int, error) {
	if timestamp >= e.now() {
		return nil, errFutureLookup
	}
	cps, err := e.loadCheckpoints(account)
	if err != nil {
		return nil, err
	}
	idx := sort.Search(len(cps), func(i int) bool { return cps[i].Timestamp > timestamp })
	if idx == 0 {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(cps[idx-1].Votes), nil
}

func (e *Engine) moveVotes(from, to common.Address, amount *big.Int) error {
	if from == to || amount.Sign() == 0 {
		return nil
	}
	if from != (common.Address{}) {
		if err := e.writeCheckpoint(from, new(big.Int).Neg(amount)); err != nil {
			return err
		}
	}
	if to != (common.Address{}) {
		if err := e.writeCheckpoint(to, amount); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) writeCheckpoint(delegate common.Address, delta *big.Int) error {
	cps, err := e.loadCheckpoints(delegate)
	if err != nil {
		return err
	}
	previous := big.NewInt(0)
	if len(cps) > 0 {
		previous = cps[len(cps)-1].Votes
	}
	votes := new(big.Int).Add(previous, delta)
	if votes.Sign() < 0 {
		return fmt.Errorf("staking: votes of %s would go negative", delegate.Hex())
	}
	now := e.now()
	if len(cps) > 0 && cps[len(cps)-1].Timestamp == now {
		cps[len(cps)-1].Votes = votes
	} else {
		cps = append(cps, checkpoint{Timestamp: now, Votes: votes})
	}
	if err := e.state.KVPut(checkpointsKey(delegate), cps); err != nil {
		return err
	}
	e.emitter.Emit(events.StakingDelegateVotesChanged{
		Delegate:      delegate,
		PreviousVotes: new(big.Int).Set(previous),
		NewVotes:      new(big.Int).Set(votes),
	})
	return nil
}

// VotingPower converts receipts into NOTE-denominated voting weight: the NOTE
// claim plus the WETH claim priced in NOTE at the pool TWAP over the voting
// oracle window.
func (e *Engine) VotingPower(receipts *big.Int) (*big.Int, error) {
	claim, err := e.GetTokenClaim(receipts)
	if err != nil {
		return nil, err
	}
	params, err := e.Params()
	if err != nil {
		return nil, err
	}
	power := new(big.Int).Set(claim.NOTE)
	if claim.WETH.Sign() == 0 {
		return power, nil
	}
	window := time.Duration(params.VotingOracleWindow) * time.Second
	rate, err := e.pool.TimeWeightedAverage(e.weth, window)
	if err != nil {
		return nil, err
	}
	converted := new(big.Rat).Mul(new(big.Rat).SetInt(claim.WETH), rate)
	return power.Add(power, new(big.Int).Quo(converted.Num(), converted.Denom())), nil
}

// GetVotingPower returns the NOTE-denominated weight of the votes delegated to
// account.
func (e *Engine) GetVotingPower(account common.Address) (*big.Int, error) {
	votes, err := e.GetVotes(account)
	if err != nil {
		return nil, err
	}
	return e.VotingPower(votes)
}
