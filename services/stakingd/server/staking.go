package server

import (
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"stakingcore/native/staking"
	"stakingcore/observability/metrics"
)

type accountResponse struct {
	Address        common.Address `json:"address"`
	Balance        string         `json:"balance"`
	PoolTokenShare string         `json:"poolTokenShare"`
	State          string         `json:"state"`
	CoolDownStart  uint64         `json:"coolDownStart,omitempty"`
	WindowOpens    uint64         `json:"windowOpens,omitempty"`
	WindowCloses   uint64         `json:"windowCloses,omitempty"`
	MaxRedeemable  string         `json:"maxRedeemable"`
	Delegate       common.Address `json:"delegate"`
	Votes          string         `json:"votes"`
	VotingPower    string         `json:"votingPower"`
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "address")
	if !common.IsHexAddress(raw) {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid address"})
		return
	}
	addr := common.HexToAddress(raw)
	s.view(w, func() (interface{}, error) {
		core := s.node.Staking()
		view, err := core.Account(addr)
		if err != nil {
			return nil, err
		}
		power, err := core.GetVotingPower(addr)
		if err != nil {
			return nil, err
		}
		return accountResponse{
			Address:        view.Address,
			Balance:        str(view.Balance),
			PoolTokenShare: str(view.PoolTokenShare),
			State:          view.State.String(),
			CoolDownStart:  view.CoolDownStart,
			WindowOpens:    view.WindowOpens,
			WindowCloses:   view.WindowCloses,
			MaxRedeemable:  str(view.MaxRedeemable),
			Delegate:       view.Delegate,
			Votes:          str(view.Votes),
			VotingPower:    str(power),
		}, nil
	})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("amount"))
	receipts, ok := new(big.Int).SetString(raw, 10)
	if !ok || receipts.Sign() < 0 {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be a non-negative integer"})
		return
	}
	s.view(w, func() (interface{}, error) {
		claim, err := s.node.Staking().GetTokenClaim(receipts)
		if err != nil {
			return nil, err
		}
		return map[string]string{
			"poolTokens": str(claim.PoolTokens),
			"note":       str(claim.NOTE),
			"weth":       str(claim.WETH),
		}, nil
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.view(w, func() (interface{}, error) {
		core := s.node.Staking()
		supply, err := core.TotalSupply()
		if err != nil {
			return nil, err
		}
		poolTokens, err := core.TotalPoolTokens()
		if err != nil {
			return nil, err
		}
		params, err := core.Params()
		if err != nil {
			return nil, err
		}
		version, err := core.Version()
		if err != nil {
			return nil, err
		}
		metrics.Staking().SetBacking(supply, poolTokens)
		return map[string]interface{}{
			"totalSupply":      str(supply),
			"totalPoolTokens":  str(poolTokens),
			"owner":            params.Owner,
			"treasury":         params.Treasury,
			"gauge":            params.Gauge,
			"coolDown":         (time.Duration(params.CoolDownSeconds) * time.Second).String(),
			"redemptionWindow": (time.Duration(params.RedemptionWindowSecs) * time.Second).String(),
			"shortfallCapBps":  params.ShortfallCapBps,
			"version":          version,
		}, nil
	})
}

// recordBacking refreshes the supply gauges from committed state.
func (s *Server) recordBacking() {
	var supply, poolTokens *big.Int
	err := s.node.View(func() error {
		var err error
		if supply, err = s.node.Staking().TotalSupply(); err != nil {
			return err
		}
		poolTokens, err = s.node.Staking().TotalPoolTokens()
		return err
	})
	if err != nil {
		s.logger.Warn("refresh backing gauges", slog.Any("error", err))
		return
	}
	metrics.Staking().SetBacking(supply, poolTokens)
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	err := s.execute(w, r, func(caller common.Address) (interface{}, error) {
		core := s.node.Staking()
		var (
			minted *big.Int
			err    error
		)
		switch strings.ToLower(req.Source) {
		case "bpt", "pool":
			minted, err = core.MintFromBPT(caller, toBig(req.PoolTokens))
		case "note":
			minted, err = core.MintFromNOTE(caller, toBig(req.NOTEAmount), toBig(req.MinPoolTokens))
		case "weth":
			minted, err = core.MintFromWETH(caller, toBig(req.NOTEAmount), toBig(req.WETHAmount), toBig(req.MinPoolTokens))
		case "eth":
			minted, err = core.MintFromETH(caller, toBig(req.NOTEAmount), toBig(req.ETHAmount), toBig(req.MinPoolTokens))
		default:
			return nil, fmt.Errorf("unknown mint source %q", req.Source)
		}
		if err != nil {
			return nil, err
		}
		return map[string]string{"minted": str(minted)}, nil
	})
	if err == nil {
		s.recordBacking()
	}
}

func (s *Server) handleStartCoolDown(w http.ResponseWriter, r *http.Request) {
	err := s.execute(w, r, func(caller common.Address) (interface{}, error) {
		wait, maxRedeemable, err := s.node.Staking().StartCoolDown(caller)
		if err != nil {
			return nil, err
		}
		return map[string]string{"coolDown": wait.String(), "maxRedeemable": str(maxRedeemable)}, nil
	})
	if err == nil {
		metrics.Staking().ObserveCoolDown("start")
	}
}

func (s *Server) handleStopCoolDown(w http.ResponseWriter, r *http.Request) {
	err := s.execute(w, r, func(caller common.Address) (interface{}, error) {
		if err := s.node.Staking().StopCoolDown(caller); err != nil {
			return nil, err
		}
		return map[string]string{"status": "stopped"}, nil
	})
	if err == nil {
		metrics.Staking().ObserveCoolDown("stop")
	}
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	err := s.execute(w, r, func(caller common.Address) (interface{}, error) {
		result, err := s.node.Staking().Redeem(caller, staking.RedeemRequest{
			Amount:     toBig(req.Amount),
			MinNOTEOut: toBig(req.MinNOTEOut),
			MinWETHOut: toBig(req.MinWETHOut),
			ToETH:      req.ToETH,
		})
		if err != nil {
			return nil, err
		}
		return map[string]string{
			"poolTokens": str(result.PoolTokens),
			"noteOut":    str(result.NOTEOut),
			"wethOut":    str(result.WETHOut),
		}, nil
	})
	if err == nil {
		s.recordBacking()
	}
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.execute(w, r, func(caller common.Address) (interface{}, error) {
		if err := s.node.Staking().Transfer(caller, req.To, toBig(req.Amount)); err != nil {
			return nil, err
		}
		return map[string]string{"status": "transferred"}, nil
	})
}

func (s *Server) handleDelegate(w http.ResponseWriter, r *http.Request) {
	var req delegateRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.execute(w, r, func(caller common.Address) (interface{}, error) {
		if err := s.node.Staking().Delegate(caller, req.Delegatee); err != nil {
			return nil, err
		}
		return map[string]string{"delegate": req.Delegatee.Hex()}, nil
	})
}
