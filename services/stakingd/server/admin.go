package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"stakingcore/node"
	"stakingcore/observability/metrics"
)

func (s *Server) handleSetCoolDown(w http.ResponseWriter, r *http.Request) {
	var req coolDownRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	var coolDown, window time.Duration
	var err error
	if req.CoolDown != "" {
		if coolDown, err = time.ParseDuration(req.CoolDown); err != nil {
			s.writeError(w, fmt.Errorf("coolDown: %w", err))
			return
		}
	}
	if req.RedemptionWindow != "" {
		if window, err = time.ParseDuration(req.RedemptionWindow); err != nil {
			s.writeError(w, fmt.Errorf("redemptionWindow: %w", err))
			return
		}
	}
	if coolDown == 0 && window == 0 {
		s.writeError(w, fmt.Errorf("coolDown or redemptionWindow required"))
		return
	}
	s.execute(w, r, func(caller common.Address) (interface{}, error) {
		core := s.node.Staking()
		if coolDown != 0 {
			if err := core.SetCoolDownTime(caller, coolDown); err != nil {
				return nil, err
			}
		}
		if window != 0 {
			if err := core.SetRedemptionWindow(caller, window); err != nil {
				return nil, err
			}
		}
		return map[string]string{"status": "updated"}, nil
	})
}

func (s *Server) handleSetSwapFee(w http.ResponseWriter, r *http.Request) {
	var req swapFeeRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	fee, err := node.FixedPoint(req.Fee)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.execute(w, r, func(caller common.Address) (interface{}, error) {
		if err := s.node.Staking().SetSwapFeePercentage(caller, fee); err != nil {
			return nil, err
		}
		return map[string]string{"swapFee": fee.String()}, nil
	})
}

func (s *Server) handleShortfall(w http.ResponseWriter, r *http.Request) {
	var req shortfallRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	err := s.execute(w, r, func(caller common.Address) (interface{}, error) {
		result, err := s.node.Staking().ExtractTokensForCollateralShortfall(caller, toBig(req.Amount))
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
		metrics.Staking().ObserveShortfall()
		s.recordBacking()
	}
}

func (s *Server) handleSetManager(w http.ResponseWriter, r *http.Request) {
	var req managerRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.execute(w, r, func(caller common.Address) (interface{}, error) {
		if err := s.node.Treasury().SetManager(caller, req.Manager); err != nil {
			return nil, err
		}
		return map[string]string{"manager": req.Manager.Hex()}, nil
	})
}

func (s *Server) handleSetOracle(w http.ResponseWriter, r *http.Request) {
	var req oracleRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.execute(w, r, func(caller common.Address) (interface{}, error) {
		if err := s.node.Treasury().SetPriceOracle(caller, req.Token, req.Oracle); err != nil {
			return nil, err
		}
		return map[string]string{"token": req.Token.Hex(), "oracle": req.Oracle}, nil
	})
}

func (s *Server) handleSetSlippage(w http.ResponseWriter, r *http.Request) {
	var req slippageRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.execute(w, r, func(caller common.Address) (interface{}, error) {
		if err := s.node.Treasury().SetSlippageLimit(caller, req.Token, req.Bps); err != nil {
			return nil, err
		}
		return map[string]interface{}{"token": req.Token.Hex(), "bps": req.Bps}, nil
	})
}
