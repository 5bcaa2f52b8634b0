package cg

import (
	"fmt"
	"strings"

	"github.com/dianpeng/sortgen/plan"
)

type Config struct {
	// emit a banner comment in front of every section
	Comment bool
}

func Generate(x *plan.Plan, config *Config) (string, error) {
	if config == nil {
		config = &Config{}
	}
	g := &programCodeGen{
		plan:   x,
		config: config,
	}
	return g.Gen()
}

// codegen from plan to the sort benchmark program. Sections are generated
// in dependency order, each into its own writer, and glued together at the
// end:
//
//	row shapes     struct SortRow<c>
//	comparators    fun compareFn<c>
//	state          struct State, fun setUpState, fun tearDownState
//	build/probe    fun buildCol<c>Row<r>Car<card>, fun probeCol<c>Row<r>Car<card>
//	driver         fun main

type programCodeGen struct {
	plan   *plan.Plan
	config *Config
}

func (self *programCodeGen) columns() []int {
	return self.plan.Matrix.Columns
}

func (self *programCodeGen) genSchema() (string, error) {
	w := newTplWriter()
	for _, c := range self.columns() {
		if err := genSchema(w, c); err != nil {
			return "", fmt.Errorf("[schema]: %s", err)
		}
	}
	return w.Flush(), nil
}

func (self *programCodeGen) genComparator() (string, error) {
	w := newTplWriter()
	for _, c := range self.columns() {
		if err := genComparator(w, c); err != nil {
			return "", fmt.Errorf("[comparator]: %s", err)
		}
	}
	return w.Flush(), nil
}

func (self *programCodeGen) genState() (string, error) {
	w := newTplWriter()
	if err := genState(w, self.columns()); err != nil {
		return "", fmt.Errorf("[state]: %s", err)
	}
	if err := genSetup(w, self.columns()); err != nil {
		return "", fmt.Errorf("[state]: %s", err)
	}
	if err := genTeardown(w, self.columns()); err != nil {
		return "", fmt.Errorf("[state]: %s", err)
	}
	return w.Flush(), nil
}

func (self *programCodeGen) genBuildProbe() (string, error) {
	w := newTplWriter()
	for idx := range self.plan.Funcs {
		if err := genFunc(w, &self.plan.Funcs[idx]); err != nil {
			return "", fmt.Errorf("[build/probe]: %s", err)
		}
	}
	return w.Flush(), nil
}

func (self *programCodeGen) genDriver() (string, error) {
	w := newTplWriter()
	if err := genDriver(w, self.plan.Funcs); err != nil {
		return "", fmt.Errorf("[driver]: %s", err)
	}
	return w.Flush(), nil
}

// checkNames refuses plans whose functions would collide with each other or
// with the fixed declarations of the program.
func (self *programCodeGen) checkNames() error {
	seen := map[string]bool{
		plan.SetupName:    true,
		plan.TeardownName: true,
		plan.EntryName:    true,
	}
	for _, c := range self.columns() {
		seen[plan.ComparatorName(c)] = true
	}
	for _, f := range self.plan.Funcs {
		if seen[f.Name] {
			return fmt.Errorf("%w: %s", plan.ErrDuplicateName, f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

func (self *programCodeGen) banner(
	buf *strings.Builder,
	title string,
) {
	if !self.config.Comment {
		return
	}
	buf.WriteString("// -----------------------------------------------------------------\n")
	buf.WriteString(fmt.Sprintf("// %s\n", title))
	buf.WriteString("// -----------------------------------------------------------------\n")
}

func (self *programCodeGen) Gen() (string, error) {
	if self.plan == nil {
		return "", fmt.Errorf("[plan]: no plan to generate")
	}
	if err := self.plan.Matrix.Validate(); err != nil {
		return "", fmt.Errorf("[plan]: %w", err)
	}

	if err := self.checkNames(); err != nil {
		return "", fmt.Errorf("[plan]: %w", err)
	}

	type section struct {
		title string
		gen   func() (string, error)
	}

	buf := &strings.Builder{}
	for _, s := range []section{
		{"row shapes", self.genSchema},
		{"comparators", self.genComparator},
		{"state", self.genState},
		{"build/probe", self.genBuildProbe},
		{"driver", self.genDriver},
	} {
		code, err := s.gen()
		if err != nil {
			return "", err
		}
		self.banner(buf, s.title)
		buf.WriteString(code)
	}
	buf.WriteString("\n")
	return buf.String(), nil
}
