package campaign

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Role identifiers. DefaultAdminRole is the zero hash; the others are the
// keccak256 hash of their name so they match the identifiers used by existing
// off-chain tooling.
var (
	DefaultAdminRole = common.Hash{}
	AdminRole        = ethcrypto.Keccak256Hash([]byte("ADMIN_ROLE"))
	MerchantRole     = ethcrypto.Keccak256Hash([]byte("MERCHANT_ROLE"))
	OperatorRole     = ethcrypto.Keccak256Hash([]byte("OPERATOR_ROLE"))
	UpgraderRole     = ethcrypto.Keccak256Hash([]byte("UPGRADER_ROLE"))
)

var roleNames = map[common.Hash]string{
	DefaultAdminRole: "DEFAULT_ADMIN_ROLE",
	AdminRole:        "ADMIN_ROLE",
	MerchantRole:     "MERCHANT_ROLE",
	OperatorRole:     "OPERATOR_ROLE",
	UpgraderRole:     "UPGRADER_ROLE",
}

// RoleName returns the symbolic name of a known role or its hex identifier.
func RoleName(role common.Hash) string {
	if name, ok := roleNames[role]; ok {
		return name
	}
	return role.Hex()
}

// ParseRole resolves a role name (e.g. "MERCHANT_ROLE" or "merchant") or a hex
// identifier.
func ParseRole(v string) (common.Hash, error) {
	for role, name := range roleNames {
		if equalFoldRole(v, name) {
			return role, nil
		}
	}
	if len(v) == 66 && strings.HasPrefix(v, "0x") {
		return common.HexToHash(v), nil
	}
	return common.Hash{}, fmt.Errorf("campaign: unknown role %q", v)
}

func equalFoldRole(input, name string) bool {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(input), "-", "_"))
	if normalized == "" {
		return false
	}
	return normalized == name || normalized+"_ROLE" == name
}

func roleMemberKey(role common.Hash, account common.Address) []byte {
	return []byte(fmt.Sprintf("campaign/role/%s/%s", role.Hex(), account.Hex()))
}

func roleAdminKey(role common.Hash) []byte {
	return []byte(fmt.Sprintf("campaign/role-admin/%s", role.Hex()))
}

// HasRole reports whether account holds role.
func (e *Engine) HasRole(role common.Hash, account common.Address) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	var held bool
	ok, err := e.state.KVGet(roleMemberKey(role, account), &held)
	if err != nil {
		return false, err
	}
	return ok && held, nil
}

// RoleAdmin returns the role whose holders may grant and revoke role.
func (e *Engine) RoleAdmin(role common.Hash) (common.Hash, error) {
	if e == nil || e.state == nil {
		return common.Hash{}, errNilState
	}
	var admin common.Hash
	ok, err := e.state.KVGet(roleAdminKey(role), &admin)
	if err != nil {
		return common.Hash{}, err
	}
	if !ok {
		return DefaultAdminRole, nil
	}
	return admin, nil
}

func (e *Engine) requireRole(role common.Hash, account common.Address) error {
	held, err := e.HasRole(role, account)
	if err != nil {
		return err
	}
	if !held {
		return fmt.Errorf("%w: %s is missing %s", ErrUnauthorized, account.Hex(), RoleName(role))
	}
	return nil
}

func (e *Engine) requireAnyRole(account common.Address, roles ...common.Hash) error {
	for _, role := range roles {
		held, err := e.HasRole(role, account)
		if err != nil {
			return err
		}
		if held {
			return nil
		}
	}
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = RoleName(role)
	}
	return fmt.Errorf("%w: %s is missing one of %v", ErrUnauthorized, account.Hex(), names)
}

func (e *Engine) grantRole(role common.Hash, account, sender common.Address) error {
	held, err := e.HasRole(role, account)
	if err != nil || held {
		return err
	}
	if err := e.state.KVPut(roleMemberKey(role, account), true); err != nil {
		return err
	}
	e.queue(newRoleEvent(EventTypeRoleGranted, role, account, sender))
	return nil
}

func (e *Engine) revokeRole(role common.Hash, account, sender common.Address) error {
	held, err := e.HasRole(role, account)
	if err != nil || !held {
		return err
	}
	if err := e.state.KVPut(roleMemberKey(role, account), false); err != nil {
		return err
	}
	e.queue(newRoleEvent(EventTypeRoleRevoked, role, account, sender))
	return nil
}

func (e *Engine) setRoleAdmin(role, admin common.Hash) error {
	previous, err := e.RoleAdmin(role)
	if err != nil {
		return err
	}
	if err := e.state.KVPut(roleAdminKey(role), admin); err != nil {
		return err
	}
	e.queue(newRoleAdminChangedEvent(role, previous, admin))
	return nil
}

// GrantRole grants role to account. The caller must hold the role's admin role.
func (e *Engine) GrantRole(caller common.Address, role common.Hash, account common.Address) error {
	return e.execute(func() error {
		if _, err := e.requireInitialized(); err != nil {
			return err
		}
		if account == (common.Address{}) {
			return ErrZeroAddress
		}
		admin, err := e.RoleAdmin(role)
		if err != nil {
			return err
		}
		if err := e.requireRole(admin, caller); err != nil {
			return err
		}
		return e.grantRole(role, account, caller)
	})
}

// RevokeRole removes role from account. The caller must hold the role's admin
// role.
func (e *Engine) RevokeRole(caller common.Address, role common.Hash, account common.Address) error {
	return e.execute(func() error {
		if _, err := e.requireInitialized(); err != nil {
			return err
		}
		admin, err := e.RoleAdmin(role)
		if err != nil {
			return err
		}
		if err := e.requireRole(admin, caller); err != nil {
			return err
		}
		return e.revokeRole(role, account, caller)
	})
}

// RenounceRole lets the caller drop one of its own roles. confirmation must
// equal the caller.
func (e *Engine) RenounceRole(caller common.Address, role common.Hash, confirmation common.Address) error {
	return e.execute(func() error {
		if _, err := e.requireInitialized(); err != nil {
			return err
		}
		if confirmation != caller {
			return ErrRenounceMismatch
		}
		return e.revokeRole(role, caller, caller)
	})
}

// SetRoleAdmin changes the admin role of role. Only default admins may call it.
func (e *Engine) SetRoleAdmin(caller common.Address, role, admin common.Hash) error {
	return e.execute(func() error {
		if _, err := e.requireInitialized(); err != nil {
			return err
		}
		if err := e.requireRole(DefaultAdminRole, caller); err != nil {
			return err
		}
		return e.setRoleAdmin(role, admin)
	})
}
