package server

import (
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"stakingcore/native/exchange"
	"stakingcore/native/treasury"
	"stakingcore/observability/metrics"
)

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	s.trade(w, r, false)
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	s.trade(w, r, true)
}

func (s *Server) trade(w http.ResponseWriter, r *http.Request, dryRun bool) {
	var req tradeRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	dex, trade, err := req.parse()
	if err != nil {
		s.writeError(w, err)
		return
	}
	err = s.execute(w, r, func(caller common.Address) (interface{}, error) {
		var sold, bought *big.Int
		var err error
		if dryRun {
			sold, bought, err = s.node.Treasury().SimulateTrade(caller, dex, trade)
		} else {
			sold, bought, err = s.node.Treasury().ExecuteTrade(caller, dex, trade)
		}
		if err != nil {
			return nil, err
		}
		return map[string]string{"sold": str(sold), "bought": str(bought)}, nil
	})
	if !dryRun {
		metrics.Staking().ObserveTrade(dex.String(), err)
	}
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	order := req.order()
	s.execute(w, r, func(caller common.Address) (interface{}, error) {
		if err := s.node.Treasury().CancelOrder(caller, order); err != nil {
			return nil, err
		}
		return map[string]string{"orderHash": order.Hash().Hex(), "status": exchange.OrderCancelled.String()}, nil
	})
}

func (s *Server) handleInvest(w http.ResponseWriter, r *http.Request) {
	var req investRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	err := s.execute(w, r, func(caller common.Address) (interface{}, error) {
		result, err := s.node.Treasury().InvestWETHAndNOTE(caller, treasury.InvestRequest{
			WETHAmount:       toBig(req.WETHAmount),
			NOTEAmount:       toBig(req.NOTEAmount),
			MinNOTEOut:       toBig(req.MinNOTEOut),
			MinPoolTokensOut: toBig(req.MinPoolTokensOut),
			Deadline:         req.Deadline,
		})
		if err != nil {
			return nil, err
		}
		return map[string]string{
			"wethSwapped": str(result.WETHSwapped),
			"noteBought":  str(result.NOTEBought),
			"noteJoined":  str(result.NOTEJoined),
			"wethJoined":  str(result.WETHJoined),
			"poolTokens":  str(result.PoolTokens),
		}, nil
	})
	metrics.Staking().ObserveInvestment("weth_note", err)
	if err == nil {
		s.recordBacking()
	}
}

func (s *Server) handleReinvest(w http.ResponseWriter, r *http.Request) {
	var req reinvestRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	primary, err := req.Primary.parse()
	if err != nil {
		s.writeError(w, err)
		return
	}
	secondary, err := req.Secondary.parse()
	if err != nil {
		s.writeError(w, err)
		return
	}
	err = s.execute(w, r, func(caller common.Address) (interface{}, error) {
		result, err := s.node.Treasury().ReinvestVaultReward(caller, req.Vault, treasury.ReinvestParams{
			RewardToken:      req.RewardToken,
			Primary:          primary,
			Secondary:        secondary,
			MinPoolTokensOut: toBig(req.MinPoolTokensOut),
		})
		if err != nil {
			return nil, err
		}
		return map[string]string{
			"rewardToken":          result.RewardToken.Hex(),
			"primaryAmount":        str(result.PrimaryAmount),
			"secondaryAmount":      str(result.SecondaryAmount),
			"poolTokensReceived":   str(result.PoolTokensReceived),
			"strategySharesMinted": str(result.StrategySharesMinted),
		}, nil
	})
	metrics.Staking().ObserveInvestment("vault_reward", err)
}
