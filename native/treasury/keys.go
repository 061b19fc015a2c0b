package treasury

import "github.com/ethereum/go-ethereum/common"

var (
	paramsKey        = []byte("treasury/params")
	oraclePrefix     = []byte("treasury/oracle/")
	slippagePrefix   = []byte("treasury/slippage/")
	permissionPrefix = []byte("treasury/permission/")
)

func oracleKey(token common.Address) []byte {
	return append(append([]byte{}, oraclePrefix...), token.Bytes()...)
}

func slippageKey(token common.Address) []byte {
	return append(append([]byte{}, slippagePrefix...), token.Bytes()...)
}

func permissionKey(target, token common.Address) []byte {
	buf := make([]byte, 0, len(permissionPrefix)+2*common.AddressLength)
	buf = append(buf, permissionPrefix...)
	buf = append(buf, target.Bytes()...)
	return append(buf, token.Bytes()...)
}
