// Command tsp reads cities from stdin and improves a closed tour until it is
// interrupted or a budget runs out, printing every new best distance.
//
//	tsp [flags] [population] < cities.txt
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
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/kayky-cas/romaria-da-vovo/internal/buildinfo"
	"github.com/kayky-cas/romaria-da-vovo/internal/config"
	"github.com/kayky-cas/romaria-da-vovo/internal/integrations"
	"github.com/kayky-cas/romaria-da-vovo/internal/integrations/csvfile"
	"github.com/kayky-cas/romaria-da-vovo/internal/integrations/textstream"
	"github.com/kayky-cas/romaria-da-vovo/internal/opt"
)

var errVersion = errors.New("version requested")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if quietExit(err) {
			return
		}
		log.Fatalf("tsp: %v", err)
	}
}

// quietExit reports errors that end the program successfully.
func quietExit(err error) bool {
	return errors.Is(err, errVersion) || errors.Is(err, flag.ErrHelp)
}

type options struct {
	configPath string
	seed       int64
	iterations int
	budget     time.Duration
	stall      int
	operators  string
	parallel   bool
	format     string
	header     bool
	version    bool
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("tsp", flag.ContinueOnError)
	var o options
	fs.StringVar(&o.configPath, "config", "", "YAML optimizer config")
	fs.Int64Var(&o.seed, "seed", 0, "rng seed; 0 picks one")
	fs.IntVar(&o.iterations, "iterations", 0, "stop after this many iterations")
	fs.DurationVar(&o.budget, "time", 0, "stop after this long")
	fs.IntVar(&o.stall, "stall", 0, "stop after this many iterations without improvement")
	fs.StringVar(&o.operators, "operators", "", "comma separated operator names")
	fs.BoolVar(&o.parallel, "parallel", false, "evaluate operators concurrently")
	fs.StringVar(&o.format, "format", "text", "input format: text or csv")
	fs.BoolVar(&o.header, "header", true, "csv input starts with a header record")
	fs.BoolVar(&o.version, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if o.version {
		fmt.Fprintln(out, buildinfo.String())
		return errVersion
	}

	cfg, err := buildConfig(o, fs.Arg(0))
	if err != nil {
		return err
	}

	src, err := newSource(o.format, o.header)
	if err != nil {
		return err
	}
	cities, err := src.Read(in)
	if err != nil {
		return err
	}
	if n := len(src.Rejected()); n > 0 {
		log.Printf("skipped %d malformed %s lines", n, src.Name())
	}

	eng, err := opt.New(cities, cfg)
	if err != nil {
		return err
	}
	res := eng.Run(ctx, opt.ReporterFunc(func(imp opt.Improvement) {
		fmt.Fprintf(out, "Distance: %v in %v\n", imp.Distance, imp.Elapsed)
	}))

	st := eng.Stats()
	log.Printf("stopped (%s) after %s iterations in %v, seed %d", res.Reason, humanize.Comma(int64(res.Iterations)), res.Elapsed, res.Seed)
	log.Printf("best %v with %d improvements; population of %d: min %v mean %v max %v stddev %v",
		res.Best.Distance, res.Improvements, st.Size, st.Min, st.Mean, st.Max, st.StdDev)
	return nil
}

// newSource picks the stdin reader. The text format always discards its
// first line; csv does so when header is set.
func newSource(format string, header bool) (integrations.CitySource, error) {
	switch format {
	case "text":
		return &textstream.Reader{}, nil
	case "csv":
		return &csvfile.Reader{Header: header}, nil
	}
	return nil, fmt.Errorf("unknown format %q", format)
}

// buildConfig layers the config file, the environment, flags and finally the
// positional population size.
func buildConfig(o options, population string) (opt.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return opt.Config{}, err
	}
	cfg = config.FromEnv(cfg)
	if population != "" {
		if n, err := strconv.Atoi(population); err == nil {
			cfg.PopulationSize = n
		}
	}
	if cfg.PopulationSize <= 0 {
		return opt.Config{}, fmt.Errorf("population %d: %w", cfg.PopulationSize, opt.ErrInvalidPopulation)
	}
	if o.seed != 0 {
		cfg.Seed = o.seed
	}
	if o.iterations > 0 {
		cfg.MaxIterations = o.iterations
	}
	if o.budget > 0 {
		cfg.TimeBudget = o.budget
	}
	if o.stall > 0 {
		cfg.StallIterations = o.stall
	}
	if o.operators != "" {
		cfg.Operators = config.SplitList(o.operators)
	}
	if o.parallel {
		cfg.Parallel = true
	}
	return cfg, nil
}
