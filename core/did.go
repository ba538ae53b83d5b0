package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// DIDPrefix is the key-hash method prefix for EVM accounts.
const DIDPrefix = "did:pkh:eip155:"

// DeriveDID maps an account to its did:pkh identifier. The address is
// lower-cased so that lookups keyed on the DID are case-insensitive.
func DeriveDID(address string, chainID int64) string {
	return DIDPrefix + strconv.FormatInt(chainID, 10) + ":" + strings.ToLower(address)
}

// ParseDID is the inverse of DeriveDID.
func ParseDID(did string) (common.Address, int64, error) {
	rest, ok := strings.CutPrefix(did, DIDPrefix)
	if !ok {
		return common.Address{}, 0, fmt.Errorf("%w: unsupported method in %q", ErrInvalidDID, did)
	}

	chain, addr, ok := strings.Cut(rest, ":")
	if !ok {
		return common.Address{}, 0, fmt.Errorf("%w: missing address in %q", ErrInvalidDID, did)
	}

	chainID, err := strconv.ParseInt(chain, 10, 64)
	if err != nil || chainID <= 0 {
		return common.Address{}, 0, fmt.Errorf("%w: bad chain id %q", ErrInvalidDID, chain)
	}

	if !common.IsHexAddress(addr) {
		return common.Address{}, 0, fmt.Errorf("%w: bad address %q", ErrInvalidDID, addr)
	}

	return common.HexToAddress(addr), chainID, nil
}

// ResolveAddress accepts either a 0x address or a did:pkh identifier.
func ResolveAddress(value string) (common.Address, error) {
	if strings.HasPrefix(value, "did:") {
		addr, _, err := ParseDID(value)
		return addr, err
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%w: %q is not an ethereum address", ErrInvalidDID, value)
	}
	return common.HexToAddress(value), nil
}
