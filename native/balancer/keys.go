package balancer

import (
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	poolPrefix    = []byte("balancer/pool/")
	samplesPrefix = []byte("balancer/samples/")
)

func poolKey(pool common.Address) []byte {
	return append(append([]byte{}, poolPrefix...), pool.Bytes()...)
}

func samplesKey(pool common.Address) []byte {
	return append(append([]byte{}, samplesPrefix...), pool.Bytes()...)
}

func poolID(pool common.Address) common.Hash {
	return ethcrypto.Keccak256Hash(poolPrefix, pool.Bytes())
}
