// Copyright ArgoDev, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"

	"github.com/argodev0/KIRO-BOT-sub013/internal/config"
	"github.com/argodev0/KIRO-BOT-sub013/internal/metrics"
	"github.com/argodev0/KIRO-BOT-sub013/internal/metrics/consumers/debug"
	otelconsumer "github.com/argodev0/KIRO-BOT-sub013/internal/metrics/consumers/otel"
	"github.com/argodev0/KIRO-BOT-sub013/pkg/profiler"
)

var (
	verbose        bool
	thresholdsPath string
	gcInterval     time.Duration
	enableOTel     bool
)

func init() {
	flag.BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	flag.StringVar(&thresholdsPath, "thresholds", "", "Path to a YAML threshold override file")
	flag.DurationVar(&gcInterval, "gc-interval", 0, "Trigger an instrumented GC at this interval (0 disables)")
	flag.BoolVar(&enableOTel, "otel", false, "Export samples through the OpenTelemetry consumer")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(),
			"Usage: %s [flags] [durationMs [intervalMs [outputFile]]]\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()

	var logger logr.Logger
	if verbose {
		zapLog, _ := zap.NewDevelopment()
		logger = zapr.NewLogger(zapLog)
	} else {
		logger = logr.Discard()
	}

	cfg, err := config.FromArgs(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	if thresholdsPath != "" {
		thresholds, err := config.LoadThresholds(thresholdsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading thresholds: %v\n", err)
			os.Exit(1)
		}
		cfg.Thresholds = thresholds
	}

	fmt.Printf("=== Memory Profiler ===\n")
	fmt.Printf("Duration: %v\n", cfg.Duration)
	fmt.Printf("Interval: %v\n", cfg.Interval)
	fmt.Printf("Output: %s\n", cfg.OutputFile)
	if gcInterval > 0 {
		fmt.Printf("GC Trigger: every %v\n", gcInterval)
	}
	fmt.Printf("\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Printf("\nReceived interrupt, shutting down...\n")
		cancel()
	}()

	router := metrics.NewMetricsRouter(logger)
	if verbose {
		consumer := debug.NewConsumer(logger)
		if err := consumer.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting debug consumer: %v\n", err)
			os.Exit(1)
		}
		if err := router.RegisterConsumer(consumer); err != nil {
			fmt.Fprintf(os.Stderr, "Error registering debug consumer: %v\n", err)
			os.Exit(1)
		}
	}
	if enableOTel {
		consumer := otelconsumer.NewConsumer(logger)
		if err := consumer.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting OpenTelemetry consumer: %v\n", err)
			os.Exit(1)
		}
		if err := router.RegisterConsumer(consumer); err != nil {
			fmt.Fprintf(os.Stderr, "Error registering OpenTelemetry consumer: %v\n", err)
			os.Exit(1)
		}
	}
	go func() {
		if err := router.Start(ctx); err != nil {
			logger.Error(err, "metrics router stopped with error")
		}
	}()

	sampler, err := profiler.NewSampler(logger, cfg, profiler.WithReceiver(router))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating sampler: %v\n", err)
		os.Exit(1)
	}

	if err := sampler.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting sampler: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Profiling for %v... (Ctrl+C to stop early)\n\n", cfg.Duration)

	if gcInterval > 0 {
		collect := sampler.WrapGC(runtime.GC)
		go func() {
			ticker := time.NewTicker(gcInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-sampler.Done():
					return
				case <-ticker.C:
					collect()
				}
			}
		}()
	}

	select {
	case <-ctx.Done():
	case <-sampler.Done():
	}

	report, err := sampler.Stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error stopping sampler: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n")
	profiler.WriteSummary(os.Stdout, report)
	fmt.Printf("\nReport written to %s\n", cfg.OutputFile)
}
