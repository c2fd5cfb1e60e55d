// schedlint loads a schedule manifest together with the built-in systems,
// sorts every group and reports structural problems without running a frame.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func printUsage() {
	fmt.Println("Usage: schedlint <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  check  Sort the schedule and report warnings and cycles")
	fmt.Println("  dump   Print the sorted update tree")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -manifest  schedule manifest (YAML)")
	fmt.Println("  -scripts   Lua scripts directory")
	fmt.Println("  -strict    treat warnings as errors (check)")
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	if cmd == "-h" || cmd == "--help" || cmd == "help" {
		printUsage()
		return
	}
	if cmd != "check" && cmd != "dump" {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	manifest := fs.String("manifest", "config/schedule.yaml", "schedule manifest")
	scripts := fs.String("scripts", "scripts", "Lua scripts directory")
	strict := fs.Bool("strict", false, "treat warnings as errors")
	_ = fs.Parse(os.Args[2:])

	log, err := newLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	rep, err := lint(*manifest, *scripts, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	if cmd == "dump" {
		fmt.Print(rep.Tree)
		return
	}
	rep.print(os.Stdout)
	if !rep.ok(*strict) {
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	zapCfg.EncoderConfig.TimeKey = ""
	zapCfg.EncoderConfig.ConsoleSeparator = "  "
	zapCfg.DisableCaller = true
	zapCfg.DisableStacktrace = true
	zapCfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	return zapCfg.Build()
}
