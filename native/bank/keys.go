package bank

import "github.com/ethereum/go-ethereum/common"

var (
	tokenMetaPrefix   = []byte("bank/token/")
	tokenSupplyPrefix = []byte("bank/supply/")
	balancePrefix     = []byte("bank/balance/")
	allowancePrefix   = []byte("bank/allowance/")
)

func tokenMetaKey(token common.Address) []byte {
	return append(append([]byte{}, tokenMetaPrefix...), token.Bytes()...)
}

func tokenSupplyKey(token common.Address) []byte {
	return append(append([]byte{}, tokenSupplyPrefix...), token.Bytes()...)
}

func balanceKey(token, account common.Address) []byte {
	buf := make([]byte, 0, len(balancePrefix)+2*common.AddressLength)
	buf = append(buf, balancePrefix...)
	buf = append(buf, token.Bytes()...)
	return append(buf, account.Bytes()...)
}

func allowanceKey(token, owner, spender common.Address) []byte {
	buf := make([]byte, 0, len(allowancePrefix)+3*common.AddressLength)
	buf = append(buf, allowancePrefix...)
	buf = append(buf, token.Bytes()...)
	buf = append(buf, owner.Bytes()...)
	return append(buf, spender.Bytes()...)
}
