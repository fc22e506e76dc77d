// Command abiprobe checks whether memory allocated in a DLL built by one C
// toolchain can be freed by an executable built by another.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/tmaxmax/abiprobe/pkg/config"
	"github.com/tmaxmax/abiprobe/pkg/logger"
	_ "github.com/tmaxmax/abiprobe/pkg/toolchain/gnu"
	_ "github.com/tmaxmax/abiprobe/pkg/toolchain/msvc"
)

const usage = `Usage: abiprobe <command> [flags]

Commands:
  probe       build and run every producer/consumer toolchain pair, write the matrix report
  inspect     guess the runtime and ABI family of compiled binaries
  toolchains  show the configured toolchains and whether they can be invoked
  history     list or show earlier probe runs

Run "abiprobe <command> -h" for the flags of a command.
`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	switch {
	case err == nil:
	case errors.Is(err, flag.ErrHelp):
	case errors.Is(err, errUsage):
		os.Exit(2)
	default:
		cancel()
		log.Fatalln(err)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errUsage
	}

	switch cmd, args := args[0], args[1:]; cmd {
	case "probe":
		return runProbe(ctx, args, stdout, stderr)
	case "inspect":
		return runInspect(args, stdout, stderr)
	case "toolchains":
		return runToolchains(args, stdout, stderr)
	case "history":
		return runHistory(ctx, args, stdout, stderr)
	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprintf(stderr, "abiprobe: unknown command %q\n\n%s", cmd, usage)
		return errUsage
	}
}

// newFlagSet creates a flag set that reports parse errors as usage errors.
func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("abiprobe "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

// setFlags returns the names of the flags given on the command line.
func setFlags(fs *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}

// loadConfig loads the configuration and initializes the global logger with it.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	level, _ := logger.ParseLevel(cfg.Logging.Level)
	logger.Init(level, cfg.Logging.Format)

	return cfg, nil
}

func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
