package domain

import (
	"fmt"
	"strings"
)

// ConnectionType pairs a display label with its short token.
type ConnectionType struct {
	Label string `json:"label"`
	ID    string `json:"id"`
}

// ConnectionTypeCustom is the only token that accepts a free-text label.
const ConnectionTypeCustom = "CUST"

var connectionTypes = []ConnectionType{
	{Label: "Mechanical", ID: "MECH"},
	{Label: "Electrical", ID: "ELEC"},
	{Label: "Magnetic", ID: "MAGN"},
	{Label: "Data", ID: "DATA"},
	{Label: "Logical", ID: "LOGI"},
	{Label: "Hydraulic", ID: "HYDR"},
	{Label: "Pneumatic", ID: "PNUM"},
	{Label: "Spring", ID: "SPRG"},
	{Label: "Ground", ID: "GRND"},
	{Label: "RF", ID: "RF___"},
	{Label: "Flexible", ID: "FLEX"},
	{Label: "String", ID: "STRN"},
	{Label: "Cable", ID: "CABL"},
	{Label: "Custom", ID: ConnectionTypeCustom},
}

// ConnectionTypes returns the catalogue in display order.
func ConnectionTypes() []ConnectionType {
	return append([]ConnectionType(nil), connectionTypes...)
}

// LookupConnectionType finds a catalogue entry by token.
func LookupConnectionType(id string) (ConnectionType, bool) {
	for _, ct := range connectionTypes {
		if ct.ID == id {
			return ct, true
		}
	}
	return ConnectionType{}, false
}

// ResolveConnectionLabel validates a (token, label) pair and returns the
// label to store. Catalogue tokens imply their label: an empty label is
// filled in and a different one is rejected. CUST requires a label.
func ResolveConnectionLabel(typeID, typeLabel string) (string, error) {
	ct, ok := LookupConnectionType(typeID)
	if !ok {
		return "", fmt.Errorf("%w: unknown type %q", ErrInvalidConnection, typeID)
	}
	label := strings.TrimSpace(typeLabel)
	if typeID == ConnectionTypeCustom {
		if label == "" {
			return "", fmt.Errorf("%w: custom type requires a label", ErrInvalidConnection)
		}
		return label, nil
	}
	if label == "" || strings.EqualFold(label, ct.Label) {
		return ct.Label, nil
	}
	return "", fmt.Errorf("%w: label %q does not match type %s (%s)", ErrInvalidConnection, typeLabel, typeID, ct.Label)
}

// Role selects which endpoint of a connection a filter matches.
type Role string

// Endpoint roles.
const (
	RoleSource Role = "source"
	RoleTarget Role = "target"
	RoleEither Role = "either"
)

// ParseRole accepts source, target or either (empty means either).
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleSource, RoleTarget, RoleEither:
		return r, nil
	case "":
		return RoleEither, nil
	}
	return "", fmt.Errorf("%w: role %q", ErrInvalidArgument, s)
}

// Connection is a typed directed link between two full codes. Source and
// Target are weak references; they are not checked against any store.
type Connection struct {
	ID          string `json:"uuid"`
	Source      string `json:"source"`
	TypeID      string `json:"type_id"`
	TypeLabel   string `json:"type_label"`
	Target      string `json:"target"`
	Description string `json:"description"`
}

// Matches reports whether code is the connection's endpoint in role.
func (c Connection) Matches(code string, role Role) bool {
	switch role {
	case RoleSource:
		return c.Source == code
	case RoleTarget:
		return c.Target == code
	default:
		return c.Source == code || c.Target == code
	}
}

// ValidateEndpoints rejects empty endpoints and self-loops.
func ValidateEndpoints(source, target string) error {
	if strings.TrimSpace(source) == "" || strings.TrimSpace(target) == "" {
		return fmt.Errorf("%w: empty endpoint", ErrInvalidConnection)
	}
	if source == target {
		return fmt.Errorf("%w: self-loop on %s", ErrInvalidConnection, source)
	}
	return nil
}
