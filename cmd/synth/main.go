package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/text-pseudonymizer/internal/config"
	"github.com/raaihank/text-pseudonymizer/internal/etl"
	"github.com/raaihank/text-pseudonymizer/internal/logger"
	"github.com/raaihank/text-pseudonymizer/internal/synth"
)

// fileList collects a repeatable path flag
type fileList []string

func (f *fileList) String() string { return strings.Join(*f, ",") }

func (f *fileList) Set(value string) error {
	*f = append(*f, value)
	return nil
}

func main() {
	var persons, organizations, locations fileList

	var (
		configPath    = flag.String("config", "", "Configuration file path")
		templatesFile = flag.String("templates", "", "Template file, one template per line")
		outputFile    = flag.String("output", "", "Output file (.json, .jsonl or .parquet)")
		count         = flag.Int("count", 0, "Number of templates to draw")
		seed          = flag.Uint64("seed", 0, "Random seed (0 picks one)")
		validateOnly  = flag.Bool("validate-only", false, "Load inputs and report pool sizes without generating")
	)
	flag.Var(&persons, "persons", "Person directory file (repeatable)")
	flag.Var(&organizations, "organizations", "Organization directory file (repeatable)")
	flag.Var(&locations, "locations", "Location directory file (repeatable)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	applyFlags(&cfg.Synthesis, *templatesFile, *outputFile, *count, *seed, persons, organizations, locations)

	if cfg.Synthesis.Templates == "" || (cfg.Synthesis.Output == "" && !*validateOnly) {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --templates templates.txt --persons noms.txt --organizations orgs.csv --output train.json\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --config configs/synth.yaml --count 5000 --seed 7 --output train.parquet\n", os.Args[0])
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg.Synthesis, *validateOnly, log); err != nil {
		log.Error("Training data generation failed", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

// applyFlags lets command line values take precedence over the config file
func applyFlags(cfg *config.SynthesisConfig, templates, output string, count int, seed uint64, persons, organizations, locations fileList) {
	if templates != "" {
		cfg.Templates = templates
	}
	if output != "" {
		cfg.Output = output
	}
	if count > 0 {
		cfg.Count = count
	}
	if seed != 0 {
		cfg.Seed = seed
	}
	if len(persons) > 0 {
		cfg.Directories.Persons = persons
	}
	if len(organizations) > 0 {
		cfg.Directories.Organizations = organizations
	}
	if len(locations) > 0 {
		cfg.Directories.Locations = locations
	}
}

func run(cfg config.SynthesisConfig, validateOnly bool, log *logger.Logger) error {
	start := time.Now()

	templates, err := etl.LoadTemplates(cfg.Templates)
	if err != nil {
		return err
	}

	pools, err := etl.LoadPools(etl.Sources{
		Persons:       cfg.Directories.Persons,
		Organizations: cfg.Directories.Organizations,
		Locations:     cfg.Directories.Locations,
	})
	if err != nil {
		return err
	}

	log.Info("Inputs loaded",
		zap.Int("templates", len(templates)),
		zap.Int("persons", len(pools.Persons)),
		zap.Int("organizations", len(pools.Organizations)),
		zap.Int("locations", len(pools.Locations)))

	if validateOnly {
		fmt.Printf("\n=== Synthesis Inputs ===\n")
		fmt.Printf("Templates:          %d\n", len(templates))
		fmt.Printf("Persons:            %d\n", len(pools.Persons))
		fmt.Printf("Organizations:      %d\n", len(pools.Organizations))
		fmt.Printf("Locations:          %d\n", len(pools.Locations))
		return nil
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	examples, stats, err := synth.Generate(templates, pools, cfg.Count, synth.NewRand(seed))
	if err != nil {
		return err
	}

	// Templates that place {ORG} or {LOC} before {PERSON} produce stale offsets
	misaligned := 0
	for i, ex := range examples {
		if err := ex.Check(); err != nil {
			misaligned++
			log.Debug("Example has inconsistent spans", zap.Int("index", i), zap.Error(err))
		}
	}
	if misaligned > 0 {
		log.Warn("Some examples carry misaligned spans", zap.Int("count", misaligned))
	}

	if err := etl.ExportTrainingData(cfg.Output, examples); err != nil {
		return err
	}

	log.Info("Training data written",
		zap.String("output", cfg.Output),
		zap.Uint64("seed", seed),
		zap.Int("requested", stats.Requested),
		zap.Int("accepted", stats.Accepted),
		zap.Int("rejected", stats.Rejected),
		zap.Duration("duration", time.Since(start)))

	fmt.Printf("\n=== Training Data ===\n")
	fmt.Printf("Output:             %s\n", cfg.Output)
	fmt.Printf("Seed:               %d\n", seed)
	fmt.Printf("Requested:          %d\n", stats.Requested)
	fmt.Printf("Accepted:           %d\n", stats.Accepted)
	fmt.Printf("Rejected:           %d\n", stats.Rejected)
	fmt.Printf("Misaligned:         %d\n", misaligned)

	return nil
}
