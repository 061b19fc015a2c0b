package exchange

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// orderDomain separates order hashes from other keccak digests.
var orderDomain = []byte("stakingcore/exchange/order/v1")

// Order is a signed offer by Maker to sell MakerAmount of MakerToken for
// TakerAmount of TakerToken. Zero Taker, Sender and FeeRecipient leave the
// order open to anyone.
type Order struct {
	Maker        common.Address
	Taker        common.Address
	FeeRecipient common.Address
	Sender       common.Address
	MakerToken   common.Address
	TakerToken   common.Address
	MakerAmount  *big.Int
	TakerAmount  *big.Int
	MakerFee     *big.Int
	TakerFee     *big.Int
	Expiration   uint64
	Salt         *big.Int
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

// Normalised returns a copy with nil amounts replaced by zero.
func (o Order) Normalised() Order {
	o.MakerAmount = new(big.Int).Set(orZero(o.MakerAmount))
	o.TakerAmount = new(big.Int).Set(orZero(o.TakerAmount))
	o.MakerFee = new(big.Int).Set(orZero(o.MakerFee))
	o.TakerFee = new(big.Int).Set(orZero(o.TakerFee))
	o.Salt = new(big.Int).Set(orZero(o.Salt))
	return o
}

// Hash returns the order hash signed by the maker.
func (o Order) Hash() common.Hash {
	n := o.Normalised()
	encoded, err := rlp.EncodeToBytes(&n)
	if err != nil {
		// Every field is RLP-encodable; failure indicates memory corruption.
		panic(fmt.Sprintf("exchange: encode order: %v", err))
	}
	return ethcrypto.Keccak256Hash(orderDomain, encoded)
}

// SignatureType is the trailing byte of an order signature.
type SignatureType uint8

const (
	SignatureIllegal SignatureType = 0x00
	SignatureInvalid SignatureType = 0x01
	SignatureEIP712  SignatureType = 0x02
	SignatureEthSign SignatureType = 0x03
	SignatureWallet  SignatureType = 0x04
)

var (
	errSignatureLength      = errors.New("exchange: signature length invalid")
	errSignatureUnsupported = errors.New("exchange: unsupported signature type")
	errSignatureMismatch    = errors.New("exchange: signature does not match maker")
)

// EthSignDigest is the EIP-191 personal-message digest of an order hash.
func EthSignDigest(hash common.Hash) []byte {
	return ethcrypto.Keccak256([]byte("\x19Ethereum Signed Message:\n32"), hash.Bytes())
}

// SignEthSign produces an EthSign order signature with the supplied key.
func SignEthSign(hash common.Hash, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := ethcrypto.Sign(EthSignDigest(hash), key)
	if err != nil {
		return nil, err
	}
	return append(sig, byte(SignatureEthSign)), nil
}

// WalletSignature wraps a validator-specific payload as a Wallet signature.
func WalletSignature(payload []byte) []byte {
	return append(append([]byte{}, payload...), byte(SignatureWallet))
}

// RecoverEthSigner returns the address that produced a 65-byte EthSign
// signature over hash. Both {0,1} and {27,28} recovery ids are accepted.
func RecoverEthSigner(hash common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, errSignatureLength
	}
	normalised := append([]byte{}, sig...)
	if normalised[64] >= 27 {
		normalised[64] -= 27
	}
	pub, err := ethcrypto.SigToPub(EthSignDigest(hash), normalised)
	if err != nil {
		return common.Address{}, fmt.Errorf("exchange: recover signer: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

func splitSignature(signature []byte) (SignatureType, []byte, error) {
	if len(signature) == 0 {
		return SignatureIllegal, nil, errSignatureLength
	}
	kind := SignatureType(signature[len(signature)-1])
	return kind, signature[:len(signature)-1], nil
}
