// Command lowerc is a demonstration driver for the AST Lowering core: it
// reads no program from the outside world (there is no shipped
// parser/type-checker, §1), only an optional TOML options file named by
// -config, and wires a Session against the in-repo
// SimpleType/SimpleOracle stand-in and a hand-built Def, lowers it, and
// prints the resulting instruction listing — mirroring the teacher's
// cmd/mag driver shape (flag parsing, one job, print and exit) without
// reusing any of its REPL/VM machinery, which this core has no use for.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/chazu/corelower/bytecode"
	"github.com/chazu/corelower/config"
	"github.com/chazu/corelower/lower"
	"github.com/chazu/corelower/typesystem"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML lowering-options file")
	flag.Parse()

	opts := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "lowerc:", err)
			os.Exit(1)
		}
		opts = loaded
	}

	oracle := &typesystem.SimpleOracle{
		NoReturnType: &typesystem.SimpleType{KindValue: typesystem.KindPrimitive, NameValue: "NoReturn"},
	}
	sess := lower.NewSession(oracle, opts)

	def := demoDef()
	cd, err := sess.LowerDef(def)
	if err != nil {
		fmt.Fprintln(os.Stderr, "lowerc:", err)
		os.Exit(1)
	}

	fmt.Printf("session %s\n", sess.ID)
	fmt.Printf("def %q: %d bytes of bytecode, %d bytes of args\n", def.Selector, len(cd.Bytecode), cd.ArgsBytesize)
	fmt.Print(bytecode.Disassemble(cd.Bytecode))
}
