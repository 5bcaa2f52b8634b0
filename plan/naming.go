package plan

import (
	"fmt"
)

// Every identifier shared between the emitters is derived here, so the
// build/probe bodies, the state and the driver can never disagree on a name.

const (
	StateType    = "State"
	ResultField  = "ret_val"
	SetupName    = "setUpState"
	TeardownName = "tearDownState"
	EntryName    = "main"
)

const (
	RoleBuild Role = iota
	RoleProbe
)

// Role tells which half of a build/probe pair a generated function is.
type Role int

func (self Role) String() string {
	switch self {
	case RoleBuild:
		return "build"
	case RoleProbe:
		return "probe"
	default:
		return fmt.Sprintf("role(%d)", int(self))
	}
}

// Phase is the resource tag prefix of the role.
func (self Role) Phase() string {
	switch self {
	case RoleBuild:
		return "sortbuild"
	case RoleProbe:
		return "sortprobe"
	default:
		return ""
	}
}

func (self Role) Valid() bool {
	return self == RoleBuild || self == RoleProbe
}

func RowShapeName(c int) string {
	return fmt.Sprintf("SortRow%d", c)
}

// FieldName is the name of the i-th field of a row shape, starting at 1.
func FieldName(i int) string {
	return fmt.Sprintf("c%d", i)
}

func ComparatorName(c int) string {
	return fmt.Sprintf("compareFn%d", c)
}

func SorterField(c int) string {
	return fmt.Sprintf("sorter%d", c)
}

func FuncName(
	role Role,
	t Triple,
) string {
	return fmt.Sprintf("%sCol%dRow%dCar%d", role, t.Columns, t.Rows, t.Cardinality)
}

// RelationName is the input relation a triple scans. Every relation carries
// SourceColumns integer columns, the column count only selects a prefix.
func RelationName(t Triple) string {
	return fmt.Sprintf("IntegerCol%dRow%dCar%d", SourceColumns, t.Rows, t.Cardinality)
}

// SourceColumn maps the i-th projected column (0 based) to the column oid of
// the relation, walking down from the last one.
func SourceColumn(i int) int {
	return SourceColumns - i
}

func ResourceTag(
	role Role,
	t Triple,
) string {
	return fmt.Sprintf("%s, %d, %d, %d", role.Phase(), t.Rows, t.RowWidth(), t.Cardinality)
}

// ParseResourceTag is the inverse of ResourceTag.
func ParseResourceTag(tag string) (Role, Triple, error) {
	var phase string
	var rows, width, card int
	n, err := fmt.Sscanf(tag, "%s %d, %d, %d", &phase, &rows, &width, &card)
	if err != nil || n != 4 {
		return 0, Triple{}, fmt.Errorf("malformed resource tag %q", tag)
	}

	var role Role
	switch phase {
	case RoleBuild.Phase() + ",":
		role = RoleBuild
	case RoleProbe.Phase() + ",":
		role = RoleProbe
	default:
		return 0, Triple{}, fmt.Errorf("unknown phase in resource tag %q", tag)
	}
	if width <= 0 || width%IntegerWidth != 0 {
		return 0, Triple{}, fmt.Errorf("row width %d of resource tag %q is not a multiple of %d", width, tag, IntegerWidth)
	}

	t := Triple{
		Columns:     width / IntegerWidth,
		Rows:        rows,
		Cardinality: card,
	}
	if ResourceTag(role, t) != tag {
		return 0, Triple{}, fmt.Errorf("malformed resource tag %q", tag)
	}
	return role, t, nil
}
