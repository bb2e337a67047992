package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/baldhumanity/evonet/architect"
	"github.com/baldhumanity/evonet/methods"
	"github.com/baldhumanity/evonet/neat"
	"github.com/baldhumanity/evonet/neat/nn"
	"github.com/baldhumanity/evonet/network"
	"github.com/baldhumanity/evonet/report"
	"github.com/baldhumanity/evonet/storage"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "new":
		return runNew(ctx, args[1:], stdout, stderr)
	case "import":
		return runImport(ctx, args[1:], stdout, stderr)
	case "train":
		return runTrain(ctx, args[1:], stdout, stderr)
	case "test":
		return runTest(ctx, args[1:], stdout, stderr)
	case "evolve":
		return runEvolve(ctx, args[1:], stdout, stderr)
	case "graph":
		return runGraph(ctx, args[1:], stdout, stderr)
	case "show":
		return runShow(ctx, args[1:], stdout, stderr)
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

// common holds the flags shared by every command.
type common struct {
	storeKind string
	dbPath    string
	logFormat string
	verbose   bool
	seed      int64
	stderr    io.Writer
}

func commonFlags(name string, stderr io.Writer) (*flag.FlagSet, *common) {
	c := &common{stderr: stderr}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&c.storeKind, "store", "sqlite", "store backend: memory|sqlite")
	fs.StringVar(&c.dbPath, "db-path", "evonet.db", "sqlite database path")
	fs.StringVar(&c.logFormat, "log-format", "text", "log format: text|json")
	fs.BoolVar(&c.verbose, "v", false, "enable debug logging")
	fs.Int64Var(&c.seed, "seed", 0, "random seed, 0 seeds from the clock")
	return fs, c
}

func (c *common) logger() *slog.Logger {
	level := slog.LevelInfo
	if c.verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.logFormat == "json" {
		return slog.New(slog.NewJSONHandler(c.stderr, opts))
	}
	return slog.New(slog.NewTextHandler(c.stderr, opts))
}

// networkOptions seeds the random source, falling back to fallback and then
// to the clock.
func (c *common) networkOptions(logger *slog.Logger, fallback int64) []network.Option {
	seed := c.seed
	if seed == 0 {
		seed = fallback
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return []network.Option{
		network.WithRand(rand.New(rand.NewSource(seed))),
		network.WithLogger(logger),
	}
}

func (c *common) openStore(ctx context.Context) (storage.Store, error) {
	store, err := storage.NewStore(c.storeKind, c.dbPath)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		_ = storage.CloseIfSupported(store)
		return nil, err
	}
	return store, nil
}

func loadNetwork(ctx context.Context, store storage.Store, id string, opts []network.Option) (storage.NetworkRecord, *network.Network, error) {
	if id == "" {
		return storage.NetworkRecord{}, nil, errors.New("-id is required")
	}
	record, ok, err := store.GetNetwork(ctx, id)
	if err != nil {
		return storage.NetworkRecord{}, nil, err
	}
	if !ok {
		return storage.NetworkRecord{}, nil, fmt.Errorf("network not found: %s", id)
	}
	n, err := record.Restore(opts...)
	if err != nil {
		return storage.NetworkRecord{}, nil, fmt.Errorf("restore network %s: %w", id, err)
	}
	return record, n, nil
}

func loadConfig(path string) (*neat.Config, error) {
	if path == "" {
		return neat.DefaultConfig(), nil
	}
	return neat.LoadConfig(path)
}

func runNew(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, c := commonFlags("new", stderr)
	name := fs.String("name", "network", "network name")
	arch := fs.String("arch", "perceptron", "architecture: perceptron|random")
	layers := fs.String("layers", "2,4,1", "perceptron layer sizes, comma separated")
	input := fs.Int("input", 2, "random: input nodes")
	hidden := fs.Int("hidden", 4, "random: hidden nodes")
	output := fs.Int("output", 1, "random: output nodes")
	gates := fs.Int("gates", 0, "random: gates")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := c.logger()
	opts := c.networkOptions(logger, 0)

	var (
		n   *network.Network
		err error
	)
	switch *arch {
	case "perceptron":
		sizes, perr := parseLayers(*layers)
		if perr != nil {
			return perr
		}
		n, err = architect.Perceptron(sizes, opts...)
	case "random":
		n, err = architect.Random(*input, *hidden, *output, architect.RandomOptions{Gates: *gates}, opts...)
	default:
		return fmt.Errorf("unknown architecture: %s", *arch)
	}
	if err != nil {
		return err
	}
	return saveNew(ctx, c, *name, n, stdout)
}

func runImport(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, c := commonFlags("import", stderr)
	name := fs.String("name", "network", "network name")
	file := fs.String("file", "", "serialized network JSON file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("-file is required")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		return err
	}
	var record network.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return fmt.Errorf("decode %s: %w", *file, err)
	}
	n, err := network.FromRecord(record, c.networkOptions(c.logger(), 0)...)
	if err != nil {
		return err
	}
	return saveNew(ctx, c, *name, n, stdout)
}

func saveNew(ctx context.Context, c *common, name string, n *network.Network, stdout io.Writer) error {
	store, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	record := storage.NewNetworkRecord(name, n)
	if err := store.SaveNetwork(ctx, record); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "created network id=%s name=%s input=%d output=%d size=%d\n",
		record.ID, name, n.Input, n.Output, n.Size())
	return nil
}

func runTrain(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, c := commonFlags("train", stderr)
	id := fs.String("id", "", "network id")
	data := fs.String("data", "", "dataset: builtin name (xor, and, or, not) or JSON file")
	configPath := fs.String("config", "", "INI or YAML config file")
	outDir := fs.String("out", "", "directory for CSV progress output")
	every := fs.Int("every", 100, "iterations between progress rows")
	if err := fs.Parse(args); err != nil {
		return err
	}

	config, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	opts, err := config.TrainOptions()
	if err != nil {
		return err
	}
	set, err := loadDataset(*data)
	if err != nil {
		return err
	}
	store, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	logger := c.logger()
	input, n, err := loadNetwork(ctx, store, *id, c.networkOptions(logger, config.Evolve.Seed))
	if err != nil {
		return err
	}

	om, err := report.NewOutputManager(*outDir)
	if err != nil {
		return err
	}
	defer om.Close()

	var writeErr error
	if om != nil && *every > 0 {
		opts.Schedule = &network.Schedule{
			Iterations: *every,
			Func: func(ev network.ScheduleEvent) {
				if err := om.WriteTraining(report.NewTrainingRow(ev)); err != nil && writeErr == nil {
					writeErr = err
				}
			},
		}
	}

	res, err := n.Train(set, opts)
	if err != nil {
		return err
	}
	if writeErr != nil {
		return writeErr
	}

	trained := storage.NewNetworkRecord(input.Name+"-trained", n)
	if err := store.SaveNetwork(ctx, trained); err != nil {
		return err
	}
	runRecord := storage.NewRunRecord(storage.RunTrain, input.ID)
	runRecord.OutputID = trained.ID
	runRecord.Error = res.Error
	runRecord.Iterations = res.Iterations
	runRecord.Elapsed = res.Elapsed
	if err := store.SaveRun(ctx, runRecord); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "trained network id=%s run=%s error=%.6f iterations=%d elapsed=%s\n",
		trained.ID, runRecord.ID, res.Error, res.Iterations, res.Elapsed.Round(time.Millisecond))
	return nil
}

func runTest(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, c := commonFlags("test", stderr)
	id := fs.String("id", "", "network id")
	data := fs.String("data", "", "dataset: builtin name (xor, and, or, not) or JSON file")
	costName := fs.String("cost", methods.MSE.Name, "cost function")
	outputs := fs.Bool("outputs", false, "print the output of every sample")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cost, err := methods.GetCost(strings.ToUpper(*costName))
	if err != nil {
		return err
	}
	set, err := loadDataset(*data)
	if err != nil {
		return err
	}
	store, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	logger := c.logger()
	_, n, err := loadNetwork(ctx, store, *id, c.networkOptions(logger, 0))
	if err != nil {
		return err
	}

	if *outputs {
		activate := n.Activate
		// Acyclic networks are evaluated on a compiled snapshot.
		if ff, err := nn.CreateFeedForwardNetwork(n); err == nil {
			activate = ff.Activate
		} else {
			logger.Debug("using recurrent activation", slog.String("reason", err.Error()))
		}
		for _, sample := range set {
			out, err := activate(sample.Input)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "%v -> %s (target %v)\n", sample.Input, formatFloats(out), sample.Output)
		}
		n.Clear()
	}

	res, err := n.Test(set, cost)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "error=%.6f cost=%s samples=%d\n", res.Error, cost.Name, len(set))
	return nil
}

func runEvolve(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, c := commonFlags("evolve", stderr)
	id := fs.String("id", "", "network id")
	data := fs.String("data", "", "dataset: builtin name (xor, and, or, not) or JSON file")
	configPath := fs.String("config", "", "INI or YAML config file")
	outDir := fs.String("out", "", "directory for CSV progress output")
	checkpoint := fs.String("checkpoint", "", "write the final population to this gzip file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	config, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	opts, err := config.EvolveOptions()
	if err != nil {
		return err
	}
	set, err := loadDataset(*data)
	if err != nil {
		return err
	}
	store, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	logger := c.logger()
	input, n, err := loadNetwork(ctx, store, *id, c.networkOptions(logger, config.Evolve.Seed))
	if err != nil {
		return err
	}

	om, err := report.NewOutputManager(*outDir)
	if err != nil {
		return err
	}
	defer om.Close()

	var (
		population *neat.Population
		history    []neat.GenerationStats
		writeErr   error
	)
	observer := neat.WithObserver(func(s neat.GenerationStats) {
		history = append(history, s)
		if err := om.WriteGeneration(s); err != nil && writeErr == nil {
			writeErr = err
		}
	})
	opts.Factory = func(template *network.Network, fitness network.FitnessFunc) (network.Evolver, error) {
		p, err := neat.NewPopulation(template, config, fitness, observer, neat.WithLogger(logger))
		population = p
		return p, err
	}

	res, err := n.Evolve(set, opts)
	if err != nil {
		return err
	}
	if writeErr != nil {
		return writeErr
	}
	if *checkpoint != "" && population != nil {
		if err := population.SaveCheckpoint(*checkpoint); err != nil {
			return err
		}
	}

	evolved := storage.NewNetworkRecord(input.Name+"-evolved", n)
	if err := store.SaveNetwork(ctx, evolved); err != nil {
		return err
	}
	runRecord := storage.NewRunRecord(storage.RunEvolve, input.ID)
	runRecord.OutputID = evolved.ID
	runRecord.Error = res.Error
	runRecord.Iterations = res.Generations
	runRecord.Elapsed = res.Elapsed
	runRecord.Generations = history
	if err := store.SaveRun(ctx, runRecord); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "evolved network id=%s run=%s error=%.6f generations=%d size=%d\n",
		evolved.ID, runRecord.ID, res.Error, res.Generations, n.Size())
	return nil
}

func runGraph(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, c := commonFlags("graph", stderr)
	id := fs.String("id", "", "network id")
	width := fs.Float64("width", 1000, "layout width")
	height := fs.Float64("height", 600, "layout height")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	_, n, err := loadNetwork(ctx, store, *id, c.networkOptions(c.logger(), 0))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(n.Graph(*width, *height))
}

func runShow(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, c := commonFlags("show", stderr)
	id := fs.String("id", "", "network id, lists every network when empty")
	runID := fs.String("run", "", "run id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	switch {
	case *runID != "":
		record, ok, err := store.GetRun(ctx, *runID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("run not found: %s", *runID)
		}
		return enc.Encode(record)
	case *id != "":
		record, ok, err := store.GetNetwork(ctx, *id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("network not found: %s", *id)
		}
		return enc.Encode(record.Network)
	}

	records, err := store.ListNetworks(ctx)
	if err != nil {
		return err
	}
	for _, r := range records {
		fmt.Fprintf(stdout, "%s\t%s\tinput=%d output=%d nodes=%d connections=%d\t%s\n",
			r.ID, r.Name, r.Network.Input, r.Network.Output, len(r.Network.Nodes), len(r.Network.Connections),
			r.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

func parseLayers(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	sizes := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid layer size %q: %w", p, err)
		}
		sizes = append(sizes, v)
	}
	return sizes, nil
}

func formatFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'f', 4, 64)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: evonet <new|import|train|test|evolve|graph|show> [flags]", msg)
}
