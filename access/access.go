// Package access is the role-check collaborator consulted by privileged
// venue operations.
package access

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var ErrAccessDenied = errors.New("access denied")

type Role string

const (
	RoleAdmin       Role = "admin"
	RoleFeesManager Role = "fees_manager"
)

// Controller answers role membership queries.
type Controller interface {
	HasRole(role Role, caller common.Address) bool
}

// RoleSet is a map-backed Controller.
type RoleSet struct {
	mu     sync.RWMutex
	grants map[Role]map[common.Address]struct{}
}

func NewRoleSet() *RoleSet {
	return &RoleSet{grants: make(map[Role]map[common.Address]struct{})}
}

func (r *RoleSet) Grant(role Role, addr common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.grants[role] == nil {
		r.grants[role] = make(map[common.Address]struct{})
	}
	r.grants[role][addr] = struct{}{}
}

func (r *RoleSet) Revoke(role Role, addr common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.grants[role], addr)
}

func (r *RoleSet) HasRole(role Role, caller common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.grants[role][caller]
	return ok
}
