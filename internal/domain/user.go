package domain

import "fmt"

// Module is a permission scope.
type Module string

const (
	ModuleRoles          Module = "ROLES"
	ModuleUsers          Module = "USERS"
	ModuleVehicles       Module = "VEHICLES"
	ModuleHostedTrips    Module = "HOSTED_TRIPS"
	ModuleRequestedTrips Module = "REQUESTED_TRIPS"
	ModuleHandshakes     Module = "HANDSHAKES"
	ModuleBankAccounts   Module = "BANK_ACCOUNTS"
)

// Operation indexes into a permission value string ("CRUD").
type Operation int

const (
	OperationCreate Operation = iota
	OperationRetrieve
	OperationUpdate
	OperationDelete
)

func (o Operation) String() string {
	switch o {
	case OperationCreate:
		return "create"
	case OperationRetrieve:
		return "retrieve"
	case OperationUpdate:
		return "update"
	case OperationDelete:
		return "delete"
	}
	return fmt.Sprintf("operation(%d)", int(o))
}

// Action is a capability a caller needs for one operation.
type Action struct {
	Module    Module
	Operation Operation
}

func (a Action) String() string {
	return fmt.Sprintf("%s %s", a.Operation, a.Module)
}

// Actions used by the services.
var (
	ActionCreateHostedTrip      = Action{ModuleHostedTrips, OperationCreate}
	ActionRetrieveHostedTrip    = Action{ModuleHostedTrips, OperationRetrieve}
	ActionUpdateHostedTrip      = Action{ModuleHostedTrips, OperationUpdate}
	ActionCreateRequestedTrip   = Action{ModuleRequestedTrips, OperationCreate}
	ActionRetrieveRequestedTrip = Action{ModuleRequestedTrips, OperationRetrieve}
	ActionCreateHandshake       = Action{ModuleHandshakes, OperationCreate}
	ActionRetrieveHandshake     = Action{ModuleHandshakes, OperationRetrieve}
	ActionUpdateHandshake       = Action{ModuleHandshakes, OperationUpdate}
	ActionRetrieveVehicle       = Action{ModuleVehicles, OperationRetrieve}
)

// Permissions maps a module to its "CRUD" value string, e.g. "1110".
type Permissions map[Module]string

// Allows reports whether the value string for the action's module has a '1'
// at the operation's index.
func (p Permissions) Allows(a Action) bool {
	v, ok := p[a.Module]
	if !ok {
		return false
	}
	i := int(a.Operation)
	return i >= 0 && i < len(v) && v[i] == '1'
}

// Caller is the resolved identity of an authenticated user.
type Caller struct {
	ID          string
	RoleID      string
	IsActive    bool
	Permissions Permissions
}
