package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xyproto/env/v2"
)

// cli.go: the cobra command tree. All compiler failures surface as
// CompileError values; main.go maps them to stable exit codes.

func platformFromTarget(target string) (Platform, error) {
	switch strings.ToLower(target) {
	case "elf", "linux":
		return PlatformELF, nil
	case "darwin", "macos":
		return PlatformDarwin, nil
	default:
		return PlatformELF, newArgError("unknown target %q (want elf or darwin)", target)
	}
}

func readSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", newIOError("cannot read %s: %v", path, err)
	}
	return string(data), nil
}

func outputPath(input, flagOut string) string {
	if flagOut != "" {
		return flagOut
	}
	if strings.HasSuffix(input, ".c") {
		return strings.TrimSuffix(input, ".c") + ".s"
	}
	return input + ".s"
}

func newRootCmd() *cobra.Command {
	var target string
	var verbose bool

	root := &cobra.Command{
		Use:           "wheelcc",
		Short:         "a C compiler targeting x86-64 GAS assembly",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	// WHEELCC_TARGET_OS / WHEELCC_VERBOSE let CI matrices pick the platform
	// and log level without flags.
	root.PersistentFlags().StringVar(&target, "target", env.Str("WHEELCC_TARGET_OS", "elf"), "output flavor: elf or darwin")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", env.Bool("WHEELCC_VERBOSE"), "log each pipeline step")

	var out string
	var noFormat bool
	build := &cobra.Command{
		Use:   "build <file.c>",
		Short: "compile a C file to a .s assembly file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			platform, err := platformFromTarget(target)
			if err != nil {
				return err
			}
			if verbose {
				log.Printf("compiling %s for %s", args[0], target)
			}
			src, err := readSource(args[0])
			if err != nil {
				return err
			}
			p := NewPipeline(platform)
			p.SetFormat(!noFormat)
			asm, err := p.Compile(src)
			if err != nil {
				return err
			}
			dst := outputPath(args[0], out)
			if err := os.WriteFile(dst, []byte(asm), 0o644); err != nil {
				return newIOError("cannot write %s: %v", dst, err)
			}
			if verbose {
				log.Printf("wrote %s", dst)
			}
			return nil
		},
	}
	build.Flags().StringVarP(&out, "output", "o", "", "output path (default: input with .s extension)")
	build.Flags().BoolVar(&noFormat, "no-format", false, "skip the asmfmt alignment pass")

	emitTac := &cobra.Command{
		Use:   "emit-tac <file.c>",
		Short: "print the three-address intermediate representation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			platform, err := platformFromTarget(target)
			if err != nil {
				return err
			}
			src, err := readSource(args[0])
			if err != nil {
				return err
			}
			p := NewPipeline(platform)
			tac, _, err := p.Lower(src)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), DumpTac(tac, p.in))
			return nil
		},
	}

	emitAst := &cobra.Command{
		Use:   "emit-ast <file.c>",
		Short: "print the typed, resolved C AST",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			platform, err := platformFromTarget(target)
			if err != nil {
				return err
			}
			src, err := readSource(args[0])
			if err != nil {
				return err
			}
			p := NewPipeline(platform)
			prog, _, err := p.Frontend(src)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), DumpAst(prog, p.in))
			return nil
		},
	}

	root.AddCommand(build, emitTac, emitAst)
	return root
}
