package plan

import (
	"fmt"
)

// Func is one generated build or probe function.
type Func struct {
	Role   Role
	Triple Triple
	Name   string
}

func (self *Func) Tag() string {
	return ResourceTag(self.Role, self.Triple)
}

// Plan is the ordered list of functions the program is made of. Funcs holds a
// build followed by its probe for every triple, in iteration order.
type Plan struct {
	Matrix Matrix
	Funcs  []Func
}

func New(m Matrix) (*Plan, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	p := &Plan{
		Matrix: m,
		Funcs:  make([]Func, 0, 2*m.Size()),
	}
	seen := make(map[string]Triple)

	it := p.Matrix.Triples()
	for it.Next() {
		t := it.Triple()
		for _, role := range []Role{RoleBuild, RoleProbe} {
			name := FuncName(role, t)
			if prev, ok := seen[name]; ok {
				return nil, fmt.Errorf("%w: %s generated by %s and %s", ErrDuplicateName, name, prev, t)
			}
			seen[name] = t
			p.Funcs = append(p.Funcs, Func{
				Role:   role,
				Triple: t,
				Name:   name,
			})
		}
	}
	return p, nil
}

func Default() (*Plan, error) {
	return New(DefaultMatrix())
}

// FuncsOf returns the functions of the given role, in emission order.
func (self *Plan) FuncsOf(role Role) []Func {
	out := []Func{}
	for _, f := range self.Funcs {
		if f.Role == role {
			out = append(out, f)
		}
	}
	return out
}
