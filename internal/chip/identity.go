package chip

import (
	"strings"

	"github.com/twchip/chipkline/internal/contracts"
	"github.com/twchip/chipkline/internal/external/fubon"
)

// MatchIdentity resolves a user-supplied branch name against the harvested
// identity set. Exact match on the normalized name wins; otherwise the
// candidates are keys that contain the name or are contained by it, and the
// longest key wins, ties broken lexicographically so the match is
// deterministic across runs.
func MatchIdentity(identities map[string]contracts.BranchIdentity, branchName string) (contracts.BranchIdentity, bool) {
	name := fubon.NormalizeName(branchName)
	if name == "" {
		return contracts.BranchIdentity{}, false
	}

	if id, ok := identities[name]; ok {
		return id, true
	}

	var bestKey string
	for key := range identities {
		if !strings.Contains(key, name) && !strings.Contains(name, key) {
			continue
		}
		if len(key) > len(bestKey) || (len(key) == len(bestKey) && key < bestKey) {
			bestKey = key
		}
	}
	if bestKey == "" {
		return contracts.BranchIdentity{}, false
	}
	return identities[bestKey], true
}
