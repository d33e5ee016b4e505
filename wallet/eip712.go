package wallet

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Domain is the EIP-712 domain of the payment asset contract.
type Domain struct {
	Name              string // e.g. "USDC"
	Version           string // e.g. "2"
	ChainID           string // decimal string
	VerifyingContract string // hex address "0x..."
}

// Type hashes (keccak256 of the type signature strings).
var (
	transferAuthTypeHash = crypto.Keccak256Hash([]byte("TransferWithAuthorization(address from,address to,uint256 value,uint256 validAfter,uint256 validBefore,bytes32 nonce)"))

	// EIP712Domain type string - note ordering matters
	domainTypeHash = crypto.Keccak256Hash([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))
)

// keccakConcat hashes the concatenation of already 32-byte-aligned words,
// matching abi.encode for the EIP-712 domain and struct encodings.
func keccakConcat(parts ...[]byte) common.Hash {
	joined := []byte{}
	for _, p := range parts {
		joined = append(joined, p...)
	}
	return crypto.Keccak256Hash(joined)
}

// padLeft32 returns a 32-byte right-aligned representation of the given big.Int.
func padLeft32(i *big.Int) []byte {
	b := i.Bytes()
	if len(b) > 32 {
		b = b[len(b)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

// addressTo32 left-pads an address into 32 bytes.
func addressTo32(a common.Address) []byte {
	out := make([]byte, 32)
	copy(out[12:], a.Bytes())
	return out
}

func stringToBig(s string) (*big.Int, error) {
	n := new(big.Int)
	if _, ok := n.SetString(s, 10); !ok {
		return nil, errors.New("invalid decimal integer string")
	}
	return n, nil
}

// hexToBytes32 converts hex (with/without 0x) into a 32-byte array,
// left-padding short input.
func hexToBytes32(hexStr string) ([32]byte, error) {
	var out [32]byte
	if len(hexStr) >= 2 && hexStr[0:2] == "0x" {
		hexStr = hexStr[2:]
	}
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return out, err
	}
	if len(b) > 32 {
		return out, errors.New("nonce longer than 32 bytes")
	}
	copy(out[32-len(b):], b)
	return out, nil
}

// domainSeparator builds the EIP-712 domain separator:
// keccak256(abi.encode(domainTypeHash, keccak256(name), keccak256(version), chainId, verifyingContract)).
func domainSeparator(d Domain) (common.Hash, error) {
	if d.Name == "" || d.Version == "" || d.ChainID == "" || d.VerifyingContract == "" {
		return common.Hash{}, errors.New("incomplete domain")
	}

	chainID, err := stringToBig(d.ChainID)
	if err != nil {
		return common.Hash{}, err
	}

	return keccakConcat(
		domainTypeHash.Bytes(),
		crypto.Keccak256Hash([]byte(d.Name)).Bytes(),
		crypto.Keccak256Hash([]byte(d.Version)).Bytes(),
		padLeft32(chainID),
		addressTo32(common.HexToAddress(d.VerifyingContract)),
	), nil
}

// hashTransferWithAuthorization computes the EIP-3009 struct hash:
// keccak256(abi.encode(TRANSFER_WITH_AUTH_TYPEHASH, from, to, value, validAfter, validBefore, nonce)).
func hashTransferWithAuthorization(from, to common.Address, value, validAfter, validBefore *big.Int, nonce [32]byte) common.Hash {
	return keccakConcat(
		transferAuthTypeHash.Bytes(),
		addressTo32(from),
		addressTo32(to),
		padLeft32(value),
		padLeft32(validAfter),
		padLeft32(validBefore),
		nonce[:],
	)
}

// typedDataHash returns the final EIP-712 digest:
// keccak256("\x19\x01" || domainSeparator || structHash).
func typedDataHash(domainSep, structHash common.Hash) common.Hash {
	prefix := []byte{0x19, 0x01}
	return crypto.Keccak256Hash(append(append(prefix, domainSep.Bytes()...), structHash.Bytes()...))
}

// TransferWithAuthDigest builds the EIP-712 digest for an EIP-3009
// transferWithAuthorization. value/validAfter/validBefore are decimal
// strings; nonce is hex.
func TransferWithAuthDigest(domain Domain, fromHex, toHex, valueDec, validAfterDec, validBeforeDec, nonceHex string) (common.Hash, error) {
	domainSep, err := domainSeparator(domain)
	if err != nil {
		return common.Hash{}, err
	}

	value, err := stringToBig(valueDec)
	if err != nil {
		return common.Hash{}, err
	}
	validAfter, err := stringToBig(validAfterDec)
	if err != nil {
		return common.Hash{}, err
	}
	validBefore, err := stringToBig(validBeforeDec)
	if err != nil {
		return common.Hash{}, err
	}
	nonce, err := hexToBytes32(nonceHex)
	if err != nil {
		return common.Hash{}, err
	}

	structHash := hashTransferWithAuthorization(
		common.HexToAddress(fromHex), common.HexToAddress(toHex),
		value, validAfter, validBefore, nonce,
	)
	return typedDataHash(domainSep, structHash), nil
}

// RecoverSigner recovers the address that signed the given digest.
// sig must be 65 bytes (R||S||V); V may be 0/1 or 27/28.
func RecoverSigner(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, errors.New("signature must be 65 bytes")
	}

	// copy to avoid mutating caller slice
	s := make([]byte, 65)
	copy(s, sig)
	if s[64] >= 27 {
		s[64] -= 27
	}

	pubKey, err := crypto.SigToPub(digest.Bytes(), s)
	if err != nil {
		return common.Address{}, fmt.Errorf("sig to pub failed: %w", err)
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}
