package chain

import (
	"encoding/binary"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/gitbounty/backend/internal/errs"
)

// ParseBountyID decodes a 0x-prefixed 32-byte hex bounty identifier.
func ParseBountyID(s string) ([32]byte, error) {
	var id [32]byte
	b, err := hexutil.Decode(strings.TrimSpace(s))
	if err != nil {
		return id, errs.Validation("bounty_id", s, "not 0x-prefixed hex")
	}
	if len(b) != 32 {
		return id, errs.Validation("bounty_id", s, "must be exactly 32 bytes")
	}
	copy(id[:], b)
	return id, nil
}

func FormatBountyID(id [32]byte) string {
	return hexutil.Encode(id[:])
}

// ParseAddress validates and decodes a 20-byte hex address.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, errs.Validation("address", s, "not a 20-byte hex address")
	}
	return common.HexToAddress(s), nil
}

// RepoIDHash derives the bytes32 repository key the escrow contract
// uses inside computeBountyId: keccak256 of the platform repository id
// as a big-endian uint64.
func RepoIDHash(repoID int64) [32]byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(repoID))
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(buf[:]))
	return out
}
