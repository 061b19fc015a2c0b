package gauge

import "github.com/ethereum/go-ethereum/common"

var (
	gaugePrefix      = []byte("gauge/config/")
	stakePrefix      = []byte("gauge/stake/")
	userRewardPrefix = []byte("gauge/reward/")
)

func gaugeKey(gauge common.Address) []byte {
	return append(append([]byte{}, gaugePrefix...), gauge.Bytes()...)
}

func stakeKey(gauge, account common.Address) []byte {
	buf := append(append([]byte{}, stakePrefix...), gauge.Bytes()...)
	return append(buf, account.Bytes()...)
}

func userRewardKey(gauge, account, token common.Address) []byte {
	buf := append(append([]byte{}, userRewardPrefix...), gauge.Bytes()...)
	buf = append(buf, account.Bytes()...)
	return append(buf, token.Bytes()...)
}
