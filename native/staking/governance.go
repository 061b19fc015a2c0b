package staking

import (
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	coreerrors "stakingcore/core/errors"
	"stakingcore/core/events"
	nativecommon "stakingcore/native/common"
	"stakingcore/native/gauge"
)

// updateParams runs an owner-only mutation of the stored parameters.
func (e *Engine) updateParams(caller common.Address, name string, fn func(*Params) (string, error)) error {
	return e.state.Atomic(func() error {
		params, err := e.Params()
		if err != nil {
			return err
		}
		if err := nativecommon.RequireOwner(moduleName, params.Owner, caller); err != nil {
			return err
		}
		value, err := fn(&params)
		if err != nil {
			return err
		}
		if err := e.putParams(&params); err != nil {
			return err
		}
		e.emitter.Emit(events.StakingParamUpdated{Param: name, Value: value})
		return nil
	})
}

func seconds(d time.Duration) string {
	return strconv.FormatUint(uint64(d/time.Second), 10)
}

// SetCoolDownTime updates the cooldown before the redemption window opens.
func (e *Engine) SetCoolDownTime(caller common.Address, coolDown time.Duration) error {
	return e.updateParams(caller, "coolDown", func(p *Params) (string, error) {
		if coolDown <= 0 {
			return "", fmt.Errorf("%w: cooldown must be positive", errInvalidParam)
		}
		p.CoolDownSeconds = uint64(coolDown / time.Second)
		return seconds(coolDown), nil
	})
}

// SetRedemptionWindow updates the length of the redemption window.
func (e *Engine) SetRedemptionWindow(caller common.Address, window time.Duration) error {
	return e.updateParams(caller, "redemptionWindow", func(p *Params) (string, error) {
		if window <= 0 {
			return "", fmt.Errorf("%w: redemption window must be positive", errInvalidParam)
		}
		p.RedemptionWindowSecs = uint64(window / time.Second)
		return seconds(window), nil
	})
}

// SetVotingOracleWindow updates the TWAP window used by VotingPower.
func (e *Engine) SetVotingOracleWindow(caller common.Address, window time.Duration) error {
	return e.updateParams(caller, "votingOracleWindow", func(p *Params) (string, error) {
		if window < 0 {
			return "", fmt.Errorf("%w: negative oracle window", errInvalidParam)
		}
		p.VotingOracleWindow = uint64(window / time.Second)
		return seconds(window), nil
	})
}

// SetRedemptionPolicy selects what a redemption does to the cooldown.
func (e *Engine) SetRedemptionPolicy(caller common.Address, policy RedemptionPolicy) error {
	return e.updateParams(caller, "redemptionPolicy", func(p *Params) (string, error) {
		if policy > RedemptionKeepsWindowOpen {
			return "", fmt.Errorf("%w: %s", errInvalidParam, policy)
		}
		p.RedemptionPolicy = policy
		return policy.String(), nil
	})
}

// SetShortfallPolicy updates the extraction cap, the minimum time between
// extractions and the clamp-or-reject behaviour above the cap.
func (e *Engine) SetShortfallPolicy(caller common.Address, capBps uint32, coolDown time.Duration, policy ShortfallPolicy) error {
	return e.updateParams(caller, "shortfall", func(p *Params) (string, error) {
		if capBps > 10_000 {
			return "", fmt.Errorf("%w: shortfall cap above 100%%", errInvalidParam)
		}
		if policy > ShortfallReject {
			return "", fmt.Errorf("%w: %s", errInvalidParam, policy)
		}
		if coolDown < 0 {
			return "", fmt.Errorf("%w: negative shortfall cooldown", errInvalidParam)
		}
		p.ShortfallCapBps = capBps
		p.ShortfallCoolDownSec = uint64(coolDown / time.Second)
		p.ShortfallPolicy = policy
		return fmt.Sprintf("cap=%d cooldown=%s policy=%s", capBps, seconds(coolDown), policy), nil
	})
}

// SetTreasury changes the recipient of claimed gauge rewards.
func (e *Engine) SetTreasury(caller, treasury common.Address) error {
	return e.updateParams(caller, "treasury", func(p *Params) (string, error) {
		if nativecommon.IsZeroAddress(treasury) {
			return "", fmt.Errorf("%w: treasury required", errInvalidParam)
		}
		p.Treasury = treasury
		return treasury.Hex(), nil
	})
}

// TransferOwnership hands the owner capability to newOwner.
func (e *Engine) TransferOwnership(caller, newOwner common.Address) error {
	return e.updateParams(caller, "owner", func(p *Params) (string, error) {
		if nativecommon.IsZeroAddress(newOwner) {
			return "", fmt.Errorf("%w: owner required", errInvalidParam)
		}
		p.Owner = newOwner
		return newOwner.Hex(), nil
	})
}

// SetSwapFeePercentage forwards a swap fee change to the pool, which the
// engine owns.
func (e *Engine) SetSwapFeePercentage(caller common.Address, fee *big.Int) error {
	return e.state.Atomic(func() error {
		params, err := e.Params()
		if err != nil {
			return err
		}
		if err := nativecommon.RequireOwner(moduleName, params.Owner, caller); err != nil {
			return err
		}
		if err := e.pool.SetSwapFeePercentage(e.address, fee); err != nil {
			return err
		}
		e.emitter.Emit(events.StakingParamUpdated{Param: "swapFeePercentage", Value: fee.String()})
		return nil
	})
}

// ExtractTokensForCollateralShortfall releases up to the configured fraction
// of the backing pool tokens to the owner as NOTE and WETH. Extractions are
// rate limited by the shortfall cooldown.
func (e *Engine) ExtractTokensForCollateralShortfall(caller common.Address, requested *big.Int) (ShortfallResult, error) {
	if err := validAmount(requested); err != nil {
		return ShortfallResult{}, err
	}
	var result ShortfallResult
	err := e.state.Atomic(func() error {
		params, err := e.Params()
		if err != nil {
			return err
		}
		if err := nativecommon.RequireOwner(moduleName, params.Owner, caller); err != nil {
			return err
		}
		now := e.now()
		var last uint64
		if _, err := e.state.KVGet(shortfallKey, &last); err != nil {
			return err
		}
		if last != 0 && now < last+params.ShortfallCoolDownSec {
			return fmt.Errorf("staking: next extraction at %d: %w", last+params.ShortfallCoolDownSec, coreerrors.ErrShortfallCooldownActive)
		}
		total, err := e.totalPoolTokens(params)
		if err != nil {
			return err
		}
		limit := nativecommon.MulDiv(total, big.NewInt(int64(params.ShortfallCapBps)), basisPoints)
		amount := new(big.Int).Set(requested)
		if amount.Cmp(limit) > 0 {
			if params.ShortfallPolicy == ShortfallReject {
				return fmt.Errorf("staking: requested %s, cap %s: %w", requested, limit, coreerrors.ErrShortfallCapExceeded)
			}
			amount = limit
		}
		if amount.Sign() == 0 {
			return errInvalidAmount
		}
		noteOut, wethOut, err := e.release(params, amount, nil, nil)
		if err != nil {
			return err
		}
		if err := e.bank.Transfer(e.note, e.address, params.Owner, noteOut); err != nil {
			return err
		}
		if err := e.bank.Transfer(e.weth, e.address, params.Owner, wethOut); err != nil {
			return err
		}
		if err := e.state.KVPut(shortfallKey, now); err != nil {
			return err
		}
		result = ShortfallResult{PoolTokens: amount, NOTEOut: noteOut, WETHOut: wethOut}
		e.emitter.Emit(events.StakingShortfallExtracted{
			Recipient:        params.Owner,
			Requested:        nativecommon.CloneInt(requested),
			PoolTokensExited: nativecommon.CloneInt(amount),
			WETHOut:          nativecommon.CloneInt(wethOut),
			NOTEOut:          nativecommon.CloneInt(noteOut),
		})
		return nil
	})
	if err != nil {
		return ShortfallResult{}, err
	}
	return result, nil
}

// ClaimRewards collects every reward accrued by the engine's gauge stake and
// forwards it to the treasury.
func (e *Engine) ClaimRewards(caller common.Address) ([]gauge.Reward, error) {
	var claimed []gauge.Reward
	err := e.state.Atomic(func() error {
		params, err := e.Params()
		if err != nil {
			return err
		}
		if err := nativecommon.RequireOwner(moduleName, params.Owner, caller); err != nil {
			return err
		}
		claimed, err = e.collectRewards(params, params.Gauge)
		return err
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (e *Engine) collectRewards(params Params, gaugeAddr common.Address) ([]gauge.Reward, error) {
	g := e.gauges.Gauge(gaugeAddr)
	tokens, err := g.RewardTokens()
	if err != nil {
		return nil, err
	}
	var rewards []gauge.Reward
	if len(tokens) > 0 {
		primary, err := g.MintPrimary(e.address)
		if err != nil {
			return nil, err
		}
		if primary.Sign() > 0 {
			rewards = append(rewards, gauge.Reward{Token: tokens[0], Amount: primary})
		}
	}
	extras, err := g.ClaimRewards(e.address)
	if err != nil {
		return nil, err
	}
	rewards = append(rewards, extras...)
	if len(rewards) > 0 && nativecommon.IsZeroAddress(params.Treasury) {
		return nil, fmt.Errorf("%w: treasury not configured", errInvalidParam)
	}
	for _, r := range rewards {
		if err := e.bank.Transfer(r.Token, e.address, params.Treasury, r.Amount); err != nil {
			return nil, err
		}
		e.emitter.Emit(events.StakingRewardsClaimed{Recipient: params.Treasury, Token: r.Token, Amount: nativecommon.CloneInt(r.Amount)})
	}
	return rewards, nil
}

// MigrateGauge moves the full gauge stake to newGauge, forwarding rewards
// accrued in the old gauge to the treasury first. The receipt ledger is left
// untouched and the stored implementation version is bumped.
func (e *Engine) MigrateGauge(caller, newGauge common.Address) (uint32, error) {
	var version uint32
	err := e.state.Atomic(func() error {
		params, err := e.Params()
		if err != nil {
			return err
		}
		if err := nativecommon.RequireOwner(moduleName, params.Owner, caller); err != nil {
			return err
		}
		if newGauge == params.Gauge {
			return fmt.Errorf("%w: gauge unchanged", errInvalidParam)
		}
		if err := e.checkGauge(newGauge); err != nil {
			return err
		}
		if _, err := e.collectRewards(params, params.Gauge); err != nil {
			return err
		}
		old := e.gauges.Gauge(params.Gauge)
		staked, err := old.BalanceOf(e.address)
		if err != nil {
			return err
		}
		if staked.Sign() > 0 {
			if err := old.Withdraw(e.address, staked); err != nil {
				return err
			}
			if err := e.gauges.Gauge(newGauge).Deposit(e.address, staked); err != nil {
				return err
			}
		}
		current, ok, err := e.state.ModuleVersion(moduleName)
		if err != nil {
			return err
		}
		if !ok {
			current = ImplementationVersion
		}
		version = current + 1
		if err := e.state.SetModuleVersion(moduleName, version); err != nil {
			return err
		}
		oldGauge := params.Gauge
		params.Gauge = newGauge
		if err := e.putParams(&params); err != nil {
			return err
		}
		e.emitter.Emit(events.StakingGaugeMigrated{
			OldGauge: oldGauge,
			NewGauge: newGauge,
			Amount:   nativecommon.CloneInt(staked),
			Version:  uint64(version),
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

// Version returns the stored implementation version.
func (e *Engine) Version() (uint32, error) {
	version, _, err := e.state.ModuleVersion(moduleName)
	return version, err
}
