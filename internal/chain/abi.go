package chain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// The escrow ABI historically lived in several partial fragment lists
// (base functions, the refund addition, the fee-admin surface). They are
// merged once at startup into a single de-duplicated interface so a
// fragment missing from one list cannot silently drop a function.

var baseFragments = []string{
	`{"type":"function","name":"createBounty","stateMutability":"nonpayable","inputs":[{"name":"repoIdHash","type":"bytes32"},{"name":"issueNumber","type":"uint256"},{"name":"token","type":"address"},{"name":"amount","type":"uint256"},{"name":"deadline","type":"uint64"}],"outputs":[{"name":"bountyId","type":"bytes32"}]}`,
	`{"type":"function","name":"fund","stateMutability":"nonpayable","inputs":[{"name":"bountyId","type":"bytes32"},{"name":"amount","type":"uint256"}],"outputs":[]}`,
	`{"type":"function","name":"resolve","stateMutability":"nonpayable","inputs":[{"name":"bountyId","type":"bytes32"},{"name":"recipient","type":"address"}],"outputs":[]}`,
	`{"type":"function","name":"getBounty","stateMutability":"view","inputs":[{"name":"bountyId","type":"bytes32"}],"outputs":[{"name":"sponsor","type":"address"},{"name":"token","type":"address"},{"name":"amount","type":"uint256"},{"name":"deadline","type":"uint64"},{"name":"resolved","type":"bool"},{"name":"refunded","type":"bool"}]}`,
	`{"type":"function","name":"computeBountyId","stateMutability":"pure","inputs":[{"name":"sponsor","type":"address"},{"name":"repoIdHash","type":"bytes32"},{"name":"issueNumber","type":"uint256"}],"outputs":[{"name":"","type":"bytes32"}]}`,
	`{"type":"event","name":"BountyCreated","inputs":[{"name":"bountyId","type":"bytes32","indexed":true},{"name":"sponsor","type":"address","indexed":true},{"name":"token","type":"address","indexed":false},{"name":"amount","type":"uint256","indexed":false},{"name":"deadline","type":"uint64","indexed":false}],"anonymous":false}`,
	`{"type":"event","name":"BountyFunded","inputs":[{"name":"bountyId","type":"bytes32","indexed":true},{"name":"amount","type":"uint256","indexed":false}],"anonymous":false}`,
	`{"type":"event","name":"BountyResolved","inputs":[{"name":"bountyId","type":"bytes32","indexed":true},{"name":"recipient","type":"address","indexed":true}],"anonymous":false}`,
}

var refundFragments = []string{
	`{"type":"function","name":"refundExpired","stateMutability":"nonpayable","inputs":[{"name":"bountyId","type":"bytes32"}],"outputs":[]}`,
	`{"type":"event","name":"BountyRefunded","inputs":[{"name":"bountyId","type":"bytes32","indexed":true},{"name":"sponsor","type":"address","indexed":true}],"anonymous":false}`,
	// resolve is deliberately repeated here; the union drops the duplicate.
	`{"type":"function","name":"resolve","stateMutability":"nonpayable","inputs":[{"name":"bountyId","type":"bytes32"},{"name":"recipient","type":"address"}],"outputs":[]}`,
}

var feeAdminFragments = []string{
	`{"type":"function","name":"availableFees","stateMutability":"view","inputs":[{"name":"token","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}`,
	`{"type":"function","name":"withdrawFees","stateMutability":"nonpayable","inputs":[{"name":"token","type":"address"},{"name":"to","type":"address"}],"outputs":[]}`,
	`{"type":"function","name":"setFeeBps","stateMutability":"nonpayable","inputs":[{"name":"feeBps","type":"uint16"}],"outputs":[]}`,
}

// BuildEscrowABI merges the fragment sets into one parsed ABI,
// de-duplicating by (type, name).
func BuildEscrowABI() (abi.ABI, error) {
	return buildABI(baseFragments, refundFragments, feeAdminFragments)
}

func buildABI(fragmentSets ...[]string) (abi.ABI, error) {
	type header struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}

	seen := make(map[string]struct{})
	var merged []json.RawMessage
	for _, set := range fragmentSets {
		for _, frag := range set {
			var h header
			if err := json.Unmarshal([]byte(frag), &h); err != nil {
				return abi.ABI{}, fmt.Errorf("malformed ABI fragment: %w", err)
			}
			key := h.Type + ":" + h.Name
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, json.RawMessage(frag))
		}
	}

	doc, err := json.Marshal(merged)
	if err != nil {
		return abi.ABI{}, err
	}

	parsed, err := abi.JSON(strings.NewReader(string(doc)))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse merged ABI: %w", err)
	}
	return parsed, nil
}
