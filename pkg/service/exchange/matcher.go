package exchange

import (
	"strings"

	"github.com/affinity-network/exchange-service/pkg/service/common"
)

// MatchRequirements selects, for each requirement in order, the first held
// credential whose type set is a superset of the requirement's. Greedy first
// fit with no backtracking: a credential picked for one requirement stays
// available for the next, so a single broad credential can cover several
// narrow requirements. The result preserves requirement order.
func MatchRequirements(requirements []CredentialRequirement, held []SignedCredential) ([]SignedCredential, error) {
	matched := make([]SignedCredential, 0, len(requirements))
	for _, requirement := range requirements {
		credential, found := firstSatisfying(requirement, held)
		if !found {
			return nil, common.NewErrorf(common.RequirementUnsatisfied,
				"no credential satisfies the requirement for types [%s]", strings.Join(requirement.Type, ", "))
		}
		matched = append(matched, credential)
	}
	return matched, nil
}

func firstSatisfying(requirement CredentialRequirement, held []SignedCredential) (SignedCredential, bool) {
	for _, credential := range held {
		if satisfies(requirement, credential) {
			return credential, true
		}
	}
	return SignedCredential{}, false
}

// satisfies reports whether the credential's type set is a superset of the
// requirement's type set.
func satisfies(requirement CredentialRequirement, credential SignedCredential) bool {
	credentialTypes := make(map[string]struct{}, len(credential.Type))
	for _, t := range credential.Type {
		credentialTypes[t] = struct{}{}
	}
	for _, required := range requirement.Type {
		if _, ok := credentialTypes[required]; !ok {
			return false
		}
	}
	return true
}
