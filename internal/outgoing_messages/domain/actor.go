package domain

import (
	"fmt"
	"strings"
)

// ActorNumber is a market participant identifier, either a 13 digit GLN or a 16 character EIC code.
type ActorNumber string

// ParseActorNumber validates and normalizes an actor number.
func ParseActorNumber(s string) (ActorNumber, error) {
	value := strings.TrimSpace(s)
	switch len(value) {
	case 13:
		for _, r := range value {
			if r < '0' || r > '9' {
				return "", fmt.Errorf("%w: %q", ErrInvalidActorNumber, s)
			}
		}
	case 16:
		for _, r := range value {
			if !(r >= '0' && r <= '9') && !(r >= 'A' && r <= 'Z') && r != '-' {
				return "", fmt.Errorf("%w: %q", ErrInvalidActorNumber, s)
			}
		}
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidActorNumber, s)
	}
	return ActorNumber(value), nil
}

func (n ActorNumber) String() string { return string(n) }

// ActorRole is the market role an actor acts in. Codes follow the ebIX/ENTSO-E role list.
type ActorRole string

const (
	ActorRoleGridAccessProvider      ActorRole = "DDM"
	ActorRoleEnergySupplier          ActorRole = "DDQ"
	ActorRoleBalanceResponsibleParty ActorRole = "DDK"
	ActorRoleMeteredDataResponsible  ActorRole = "MDR"
	ActorRoleDataHubAdministrator    ActorRole = "DGL"
	ActorRoleSystemOperator          ActorRole = "EZ"
	ActorRoleDelegated               ActorRole = "DEL"
)

var actorRoleNames = map[string]ActorRole{
	"gridaccessprovider":      ActorRoleGridAccessProvider,
	"energysupplier":          ActorRoleEnergySupplier,
	"balanceresponsibleparty": ActorRoleBalanceResponsibleParty,
	"metereddataresponsible":  ActorRoleMeteredDataResponsible,
	"datahubadministrator":    ActorRoleDataHubAdministrator,
	"systemoperator":          ActorRoleSystemOperator,
	"delegated":               ActorRoleDelegated,
}

// ParseActorRole accepts either the role code (DDQ) or the role name (EnergySupplier).
func ParseActorRole(s string) (ActorRole, error) {
	value := strings.TrimSpace(s)
	switch role := ActorRole(strings.ToUpper(value)); role {
	case ActorRoleGridAccessProvider, ActorRoleEnergySupplier, ActorRoleBalanceResponsibleParty,
		ActorRoleMeteredDataResponsible, ActorRoleDataHubAdministrator, ActorRoleSystemOperator, ActorRoleDelegated:
		return role, nil
	}
	if role, ok := actorRoleNames[strings.ToLower(value)]; ok {
		return role, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownActorRole, s)
}

func (r ActorRole) String() string { return string(r) }

// Actor is a market participant acting in a specific role.
type Actor struct {
	Number ActorNumber
	Role   ActorRole
}

// NewActor parses and validates both parts of an actor identity.
func NewActor(number, role string) (Actor, error) {
	n, err := ParseActorNumber(number)
	if err != nil {
		return Actor{}, err
	}
	r, err := ParseActorRole(role)
	if err != nil {
		return Actor{}, err
	}
	return Actor{Number: n, Role: r}, nil
}

func (a Actor) String() string { return fmt.Sprintf("%s/%s", a.Number, a.Role) }

// Receiver is the actor a message or bundle is delivered to.
type Receiver = Actor

// Sender is the actor a message is sent on behalf of.
type Sender = Actor
