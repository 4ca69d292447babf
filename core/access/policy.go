package access

import (
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/pkg/errors"

	"github.com/njautech/schoolhub/core"
)

const rbacModel = `
[request_definition]
r = sub, act

[policy_definition]
p = sub, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.act == p.act
`

// Policy decides whether an Actor may perform an Action on a resource.
type Policy struct {
	enforcer *casbin.Enforcer
	rules    map[Action]Rule
}

// NewPolicy loads Rules into a casbin enforcer.
func NewPolicy() (*Policy, error) {
	return newPolicy(Rules)
}

func newPolicy(rules map[Action]Rule) (*Policy, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, errors.Wrap(err, "loading rbac model")
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, errors.Wrap(err, "creating enforcer")
	}

	policies := make([][]string, 0, len(rules)*len(AllRoles))
	for act, rule := range rules {
		for _, role := range rule.Roles {
			policies = append(policies, []string{string(role), string(act)})
		}
	}
	if len(policies) > 0 {
		if _, err := enforcer.AddPolicies(policies); err != nil {
			return nil, errors.Wrap(err, "adding policies")
		}
	}
	return &Policy{enforcer: enforcer, rules: rules}, nil
}

// MustNewPolicy is like NewPolicy but panics on error.
func MustNewPolicy() *Policy {
	p, err := NewPolicy()
	if err != nil {
		panic(err)
	}
	return p
}

// RoleAllowed is the allow-list predicate: it holds only when role is a member of the
// action's allowed set. Unknown actions, empty roles and enforcer errors all deny.
func (p *Policy) RoleAllowed(role Role, act Action) bool {
	if !role.IsValid() {
		return false
	}
	if _, ok := p.rules[act]; !ok {
		return false
	}
	ok, err := p.enforcer.Enforce(string(role), string(act))
	return err == nil && ok
}

// Authorize returns nil when actor may perform act on a resource owned by ownerID,
// and a core.PermissionError otherwise. ownerID must come from the store.
func (p *Policy) Authorize(actor Actor, act Action, ownerID string) error {
	if !p.RoleAllowed(actor.Role, act) {
		return core.ErrForbidden
	}

	switch p.rules[act].Ownership {
	case OwnerOnly:
		if !isOwner(actor, ownerID) {
			return core.ErrForbidden
		}
	case OwnerOrAdmin:
		if !(actor.IsAdmin() || isOwner(actor, ownerID)) {
			return core.ErrForbidden
		}
	}
	return nil
}

// Allow is Authorize for actions that do not involve a resource owner.
func (p *Policy) Allow(actor Actor, act Action) error {
	return p.Authorize(actor, act, "")
}

func isOwner(actor Actor, ownerID string) bool {
	return actor.ID != "" && ownerID != "" && actor.ID == ownerID
}
