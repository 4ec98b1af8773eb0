package domain

import (
	"errors"
	"testing"
)

func TestResolveConnectionLabel(t *testing.T) {
	cases := []struct {
		name    string
		id      string
		label   string
		want    string
		wantErr bool
	}{
		{"implied label", "MECH", "", "Mechanical", false},
		{"matching label", "ELEC", "electrical", "Electrical", false},
		{"mismatched label", "ELEC", "Hydraulic", "", true},
		{"custom label", "CUST", "Bayonet mount", "Bayonet mount", false},
		{"custom without label", "CUST", "  ", "", true},
		{"unknown token", "NOPE", "", "", true},
		{"rf token", "RF___", "RF", "RF", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveConnectionLabel(tc.id, tc.label)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidConnection) {
					t.Fatalf("expected ErrInvalidConnection, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestConnectionTypesCatalogue(t *testing.T) {
	types := ConnectionTypes()
	if types[0].ID != "MECH" || types[len(types)-1].ID != ConnectionTypeCustom {
		t.Fatalf("unexpected catalogue order %v", types)
	}
	types[0].ID = "XXXX"
	if ct, _ := LookupConnectionType("MECH"); ct.Label != "Mechanical" {
		t.Fatalf("catalogue must not be mutable through the returned slice")
	}
}

func TestValidateEndpoints(t *testing.T) {
	if err := ValidateEndpoints("a", "a"); !errors.Is(err, ErrInvalidConnection) {
		t.Fatalf("expected self-loop rejection, got %v", err)
	}
	if err := ValidateEndpoints("", "b"); !errors.Is(err, ErrInvalidConnection) {
		t.Fatalf("expected empty endpoint rejection, got %v", err)
	}
	if err := ValidateEndpoints("a", "b"); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestConnectionMatches(t *testing.T) {
	c := Connection{Source: "a", Target: "b"}
	if !c.Matches("a", RoleSource) || c.Matches("a", RoleTarget) || !c.Matches("b", RoleEither) {
		t.Fatalf("unexpected role matching")
	}
	if r, err := ParseRole(""); err != nil || r != RoleEither {
		t.Fatalf("empty role should default to either")
	}
	if _, err := ParseRole("sideways"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid role error")
	}
}

func TestPersistenceErrorMatchesBoth(t *testing.T) {
	cause := errors.New("disk full")
	err := error(&PersistenceError{Bucket: "systems", Op: "save", Err: cause})
	if !errors.Is(err, ErrPersistenceFailed) || !errors.Is(err, cause) {
		t.Fatalf("persistence error should match sentinel and cause")
	}
}

func TestParseBehavior(t *testing.T) {
	if b, err := ParseBehavior("Lineage"); err != nil || b != BehaviorLineage {
		t.Fatalf("unexpected parse %v %v", b, err)
	}
	if _, err := ParseBehavior("fly"); !errors.Is(err, ErrUnknownBehavior) {
		t.Fatalf("expected ErrUnknownBehavior, got %v", err)
	}
}
