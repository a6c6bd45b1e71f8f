package store

import (
	"github.com/ehr/hms/internal/platform/gateway"
	"github.com/ehr/hms/internal/platform/lifecycle"
	"github.com/ehr/hms/pkg/resource"
)

// Op names one kind of remote operation.
type Op string

const (
	OpFetchAll Op = gateway.OpFetchAll
	OpFetchOne Op = gateway.OpFetchOne
	OpCreate   Op = gateway.OpCreate
	OpUpdate   Op = gateway.OpUpdate
	OpDelete   Op = gateway.OpDelete
)

// Ops lists every operation kind in a stable order.
var Ops = []Op{OpFetchAll, OpFetchOne, OpCreate, OpUpdate, OpDelete}

// ParseOp validates an operation name.
func ParseOp(s string) (Op, bool) {
	for _, op := range Ops {
		if string(op) == s {
			return op, true
		}
	}
	return "", false
}

// State is the entity data owned by one container.
type State struct {
	Items   []resource.Entity
	Current resource.Entity
}

// Action is the successful result of one operation.
type Action struct {
	Op     Op
	Items  []resource.Entity
	Entity resource.Entity
	ID     string
}

// Reduce applies a successful action to s. It is pure: s is not modified.
func Reduce(s State, a Action, idField string) State {
	switch a.Op {
	case OpFetchAll:
		s.Items = ReplaceAll(a.Items)
	case OpFetchOne:
		s.Current = a.Entity
	case OpCreate:
		// A bare success marker has no identifier and is not an entity.
		if _, ok := a.Entity.ID(idField); ok {
			s.Items = Append(s.Items, a.Entity)
		}
	case OpUpdate:
		s.Items, _ = ReplaceByID(s.Items, idField, a.Entity)
	case OpDelete:
		s.Items, _ = RemoveByID(s.Items, idField, a.ID)
	}
	return s
}

// Snapshot is the externally visible state of a container.
type Snapshot struct {
	Name    string                 `json:"name"`
	Items   []resource.Entity      `json:"items"`
	Current resource.Entity        `json:"current"`
	Ops     map[Op]lifecycle.State `json:"operations"`
}
