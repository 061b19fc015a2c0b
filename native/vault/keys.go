package vault

import "github.com/ethereum/go-ethereum/common"

var (
	configPrefix = []byte("vault/config/")
	supplyPrefix = []byte("vault/supply/")
	sharesPrefix = []byte("vault/shares/")
)

func configKey(vault common.Address) []byte {
	return append(append([]byte{}, configPrefix...), vault.Bytes()...)
}

func supplyKey(vault common.Address) []byte {
	return append(append([]byte{}, supplyPrefix...), vault.Bytes()...)
}

func sharesKey(vault, account common.Address) []byte {
	buf := append(append([]byte{}, sharesPrefix...), vault.Bytes()...)
	return append(buf, account.Bytes()...)
}
