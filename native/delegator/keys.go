package delegator

import "github.com/ethereum/go-ethereum/common"

var (
	paramsKey     = []byte("delegator/params")
	gaugePrefix   = []byte("delegator/gauge/")
	balancePrefix = []byte("delegator/balance/")
)

func gaugeKey(lpToken common.Address) []byte {
	return append(append([]byte{}, gaugePrefix...), lpToken.Bytes()...)
}

func balanceKey(lpToken, owner common.Address) []byte {
	buf := append(append([]byte{}, balancePrefix...), lpToken.Bytes()...)
	return append(buf, owner.Bytes()...)
}
