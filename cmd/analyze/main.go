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

	"github.com/google/uuid"

	"github.com/codebuildervaibhav/discussion-analysis/internal/app"
	"github.com/codebuildervaibhav/discussion-analysis/internal/config"
	"github.com/codebuildervaibhav/discussion-analysis/internal/logger"
	"github.com/codebuildervaibhav/discussion-analysis/internal/pipeline"
)

func main() {
	configPath := flag.String("config", config.GetEnvString("DA_CONFIG", "config/config.yaml"), "path to config file")
	name := flag.String("name", "", "name for the discussion (defaults to the file name)")
	formats := flag.String("formats", "", "comma separated report formats (html,txt,pdf)")
	noSentiment := flag.Bool("no-sentiment", false, "skip sentiment analysis")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <audio file>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	audioPath := flag.Arg(0)

	config.LoadEnv()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *debug {
		cfg.Debug = true
	}
	if *noSentiment {
		cfg.Analysis.Sentiment = false
	}
	if *formats != "" {
		cfg.Report.Formats = strings.Split(*formats, ",")
		if err := cfg.Validate(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}
	if *name == "" {
		*name = strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	}

	logger.Init(logger.NewConsoleLogger(logger.ConsoleLoggerParams{Debug: cfg.Debug}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize", "err", err)
	}
	defer a.Close()

	session := a.DB.NewSession()
	defer session.Close()

	p, err := a.NewPipeline(session)
	if err != nil {
		logger.Fatal("Failed to build pipeline", "err", err)
	}

	var failedAfter pipeline.State
	var last pipeline.State
	reportPath, err := p.Run(ctx, audioPath, pipeline.RunOptions{
		RunID: uuid.New().String(),
		Name:  *name,
		Progress: func(pct float64, stage string) {
			logger.Info("Progress", "pct", fmt.Sprintf("%.0f%%", pct*100), "stage", stage)
		},
		OnState: func(s pipeline.State) {
			if s == pipeline.StateFailed {
				failedAfter = last
			}
			last = s
		},
	})
	if err != nil {
		logger.Error("Analysis failed", "after", failedAfter, "err", err)
		session.Close()
		a.Close()
		os.Exit(1)
	}

	fmt.Println(reportPath)
}
