package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dianpeng/sortgen/cg"
	"github.com/dianpeng/sortgen/plan"
	"github.com/dianpeng/sortgen/tpl"
	"github.com/dianpeng/sortgen/vm"
	"github.com/fatih/color"
)

var fOutput = flag.String(
	"output",
	"",
	"specify path to save output file, default write to STDOUT",
)

var fMatrix = flag.String(
	"matrix",
	"",
	"specify a yaml file narrowing the benchmark matrix, default generates all of it",
)

var fPlan = flag.Bool(
	"plan",
	false,
	"print the plan instead of the generated program",
)

var fCheck = flag.Bool(
	"check",
	false,
	"parse and check the generated program before writing it",
)

var fRun = flag.Bool(
	"run",
	false,
	"dry run the generated program against synthetic relations and print the report",
)

var fStrict = flag.Bool(
	"strict",
	false,
	"with -run, treat sorter life cycle misuse as an error",
)

var fSeed = flag.Int64(
	"seed",
	1,
	"with -run, seed of the synthetic relations",
)

func oops(stage string, err error) {
	color.New(color.FgRed).Fprintf(os.Stderr, "ERROR [%s]]] %s\n", stage, err)
	os.Exit(-1)
}

func loadMatrix() plan.Matrix {
	if *fMatrix == "" {
		return plan.DefaultMatrix()
	}
	m, err := plan.LoadMatrix(*fMatrix)
	if err != nil {
		oops("matrix", err)
	}
	return m
}

func write(data string) {
	if *fOutput == "" {
		fmt.Print(data)
		return
	}
	if err := os.WriteFile(
		*fOutput,
		[]byte(data),
		0644,
	); err != nil {
		oops("output", err)
	}
}

func main() {
	flag.Parse()

	p, err := plan.New(loadMatrix())
	if err != nil {
		oops("plan", err)
	}
	if *fPlan {
		write(p.Print())
		return
	}

	code, err := cg.Generate(
		p,
		&cg.Config{
			Comment: true,
		},
	)
	if err != nil {
		oops("code-gen", err)
	}

	if *fCheck || *fRun {
		prog, err := tpl.Parse(code)
		if err != nil {
			oops("parse", err)
		}
		if err := tpl.Check(prog); err != nil {
			oops("check", err)
		}

		if *fRun {
			rt := vm.NewRuntime()
			rt.Strict = *fStrict
			rt.Relations = vm.NewSyntheticRelations(*fSeed)
			result, err := vm.New(prog, rt).Run(tpl.EntryName)
			if err != nil {
				oops("run", err)
			}
			buf := &strings.Builder{}
			if err := vm.WriteReport(buf, result, rt.Records); err != nil {
				oops("report", err)
			}
			write(buf.String())
			return
		}
	}

	write(code)
}
