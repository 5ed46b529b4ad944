package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/golang/glog"

	"spice2ibis/pkg/analysis"
	"spice2ibis/pkg/config"
	"spice2ibis/pkg/ibis"
	"spice2ibis/pkg/ibischk"
	"spice2ibis/pkg/output"
	"spice2ibis/pkg/parser"
	"spice2ibis/pkg/plot"
	"spice2ibis/pkg/s2iutil"
	"spice2ibis/pkg/spice"
)

var (
	spiceCmd   = flag.String("spice", "", "simulator command, overrides [Spice Command]")
	outPath    = flag.String("o", "", "output .ibs path (default: [File Name] or config name)")
	cleanup    = flag.Bool("cleanup", false, "delete intermediate .spi/.out/.msg files")
	iterate    = flag.Bool("iterate", false, "reuse existing simulator output files")
	plotDir    = flag.String("plot", "", "write per-model HTML charts into this directory")
	ibischkBin = flag.String("ibischk", "", "validate the output with this ibischk binary")
	forceYAML  = flag.Bool("yaml", false, "treat the config file as YAML regardless of extension")
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [flags] <config file>\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	code := run()
	glog.Flush()
	os.Exit(code)
}

// Exit codes: 0 success, 1 pipeline failure, 2 validator errors.
func run() int {
	if flag.NArg() != 1 {
		usage()
		return 1
	}
	cfgPath := flag.Arg(0)

	// Fail on a missing simulator before doing any work. When the
	// command comes from the config instead, the check runs again right
	// after parsing.
	if *spiceCmd != "" {
		if err := spice.Preflight(*spiceCmd); err != nil {
			glog.Errorf("%v", err)
			return 1
		}
	}

	top, err := load(cfgPath)
	if err != nil {
		glog.Errorf("%s: %+v", cfgPath, err)
		return 1
	}
	if err := s2iutil.CompleteDataStructures(top); err != nil {
		glog.Errorf("%s: %+v", cfgPath, err)
		return 1
	}

	command := *spiceCmd
	if command == "" {
		command = top.Global.SpiceCommand
	}
	if command == "" {
		command = top.Global.SpiceType.String()
	}
	if err := spice.Preflight(command); err != nil {
		glog.Errorf("%v", err)
		return 1
	}

	workDir := filepath.Dir(cfgPath)
	env := &spice.Env{
		Dialect: spice.DialectFor(top.Global.SpiceType.String()),
		Command: command,
		WorkDir: workDir,
		MockDir: filepath.Join(workDir, "mock"),
		Cleanup: *cleanup || top.Global.Cleanup,
		Iterate: *iterate || top.Global.Iterate,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errs := analysis.New(env, top).RunAll(ctx)
	if errs > 0 {
		glog.Warningf("analysis finished with %d errors, writing partial model", errs)
	}
	if ctx.Err() != nil {
		glog.Errorf("interrupted, writing what completed so far")
	}

	ibsPath := resolveOutPath(cfgPath, top)
	if err := output.WriteFile(ibsPath, top); err != nil {
		glog.Errorf("write %s: %+v", ibsPath, err)
		return 1
	}
	glog.Infof("wrote %s", ibsPath)

	if *plotDir != "" {
		if err := plot.WriteAll(*plotDir, top); err != nil {
			glog.Errorf("plot: %+v", err)
			return 1
		}
	}

	if *ibischkBin != "" {
		res, err := ibischk.Run(ctx, *ibischkBin, ibsPath)
		if err != nil {
			glog.Errorf("ibischk: %+v", err)
			return 1
		}
		for _, line := range res.Errors {
			glog.Errorf("ibischk: %s", line)
		}
		for _, line := range res.Warnings {
			glog.Warningf("ibischk: %s", line)
		}
		if !res.Clean() {
			return 2
		}
	}
	return 0
}

func load(path string) (*ibis.TOP, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if *forceYAML || ext == ".yaml" || ext == ".yml" {
		return config.Load(path)
	}
	return parser.Parse(path)
}

func resolveOutPath(cfgPath string, top *ibis.TOP) string {
	if *outPath != "" {
		return *outPath
	}
	if top.Global.FileName != "" {
		return filepath.Join(filepath.Dir(cfgPath), top.Global.FileName)
	}
	base := strings.TrimSuffix(filepath.Base(cfgPath), filepath.Ext(cfgPath))
	return filepath.Join(filepath.Dir(cfgPath), base+".ibs")
}
