package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/tmaxmax/abiprobe/pkg/toolchain"
)

func runToolchains(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("toolchains", stderr)
	configPath := fs.String("config", "", "YAML configuration file")
	ids := fs.String("toolchains", "", "comma-separated toolchain IDs to show (default: all configured)")

	if err := parseFlags(fs, args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	specs, err := cfg.Select(splitIDs(*ids))
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFAMILY\tABI\tTARGET\tCOMPILER\tVERSION\tSTATUS")

	ready := map[string]toolchain.Toolchain{}
	for _, tc := range toolchain.Detect(specs) {
		ready[tc.Spec().ID] = tc
	}

	for _, spec := range specs {
		tc, ok := ready[spec.ID]
		if !ok {
			_, err := toolchain.New(spec)
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t-\tunavailable: %v\n", spec.ID, spec.Family, spec.Family.ABI(), spec.TargetTriple(), spec.Compiler, err)
			continue
		}

		info := tc.Info()
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\tready\n", spec.ID, spec.Family, spec.Family.ABI(), spec.TargetTriple(), info.Path, info.Version)
	}

	return tw.Flush()
}
