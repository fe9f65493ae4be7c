// Command edgecas-archive exports a store to a CARv2 archive or imports one
// back.
//
//	edgecas-archive export --config edgecasd.yaml --out objects.car
//	edgecas-archive import --config edgecasd.yaml --in objects.car
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/agenthands/edgecas/pkg/archive"
	"github.com/agenthands/edgecas/pkg/edgecas"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const usage = `usage: edgecas-archive <export|import> [flags]

Commands:
  export   write every stored object to a CARv2 file
  import   restore objects from a CARv2 file
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "edgecas-archive: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, usage)
		return errors.New("missing command")
	}
	cmd, args := args[0], args[1:]

	fs := pflag.NewFlagSet(cmd, pflag.ContinueOnError)
	configPath := fs.String("config", "", "YAML file with an edgecas section, as read by edgecasd")
	storeDir := fs.String("store-dir", "", "pebble directory; overrides the config file")
	verbose := fs.BoolP("verbose", "v", false, "log progress")

	var path *string
	switch cmd {
	case "export":
		path = fs.String("out", "", "archive to create")
	case "import":
		path = fs.String("in", "", "archive to read")
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stdout, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("%s: archive path is required", cmd)
	}

	cfg, err := readStoreConfig(*configPath)
	if err != nil {
		return err
	}
	if fs.Changed("store-dir") {
		cfg.Store.Backend = "pebble"
		cfg.Store.Dir = *storeDir
	}
	// Nothing serves reads here, so there is nothing to warm.
	cfg.Cache.Backend = "none"
	cfg.Background.Inline = true

	logger := zap.NewNop()
	if *verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := edgecas.Open(ctx, cfg, edgecas.WithLogger(logger))
	if err != nil {
		return err
	}
	defer store.Close()

	a := archive.New(logger)
	var stats archive.Stats
	if cmd == "export" {
		stats, err = a.Export(ctx, store, *path)
	} else {
		stats, err = a.Import(ctx, *path, store)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%sed %d objects (%d bytes)\n", cmd, stats.Objects, stats.Bytes)
	return nil
}

func readStoreConfig(path string) (edgecas.Config, error) {
	var file struct {
		Store edgecas.Config `yaml:"edgecas"`
	}
	if path == "" {
		return file.Store, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return file.Store, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return file.Store, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return file.Store, nil
}
