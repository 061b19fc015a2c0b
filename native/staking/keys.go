package staking

import "github.com/ethereum/go-ethereum/common"

var (
	paramsKey     = []byte("staking/params")
	supplyKey     = []byte("staking/supply")
	shortfallKey  = []byte("staking/shortfall/last")
	accountPrefix = []byte("staking/account/")
	allowPrefix   = []byte("staking/allowance/")
	checkptPrefix = []byte("staking/checkpoints/")
)

func accountKey(addr common.Address) []byte {
	return append(append([]byte{}, accountPrefix...), addr.Bytes()...)
}

func allowanceKey(owner, spender common.Address) []byte {
	buf := make([]byte, 0, len(allowPrefix)+2*common.AddressLength)
	buf = append(buf, allowPrefix...)
	buf = append(buf, owner.Bytes()...)
	return append(buf, spender.Bytes()...)
}

func checkpointsKey(delegate common.Address) []byte {
	return append(append([]byte{}, checkptPrefix...), delegate.Bytes()...)
}
