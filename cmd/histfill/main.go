package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/flagext"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/athuldev13/Loki/pkg/fill"
	"github.com/athuldev13/Loki/pkg/sink"
)

func main() {
	var (
		specPath           string
		inputs             flagext.StringSlice
		outputDir          string
		workers            int
		metricsPort        int
		kafkaBrokers       string
		kafkaTopic         string
		kafkaCreateTopic   bool
		kafkaUsername      string
		kafkaPassword      string
		kafkaSASLMechanism string
	)

	flag.StringVar(&specPath, "spec", "", "JSON file defining the histograms to fill")
	flag.Var(&inputs, "input", "Input parquet shard (repeatable)")
	flag.StringVar(&outputDir, "output-dir", "out", "Directory receiving one run directory per invocation")
	flag.IntVar(&workers, "workers", 4, "Number of parallel fill workers (each owns whole shards)")
	flag.IntVar(&metricsPort, "metrics-port", 0, "Port to expose Prometheus metrics (0 disables)")
	flag.StringVar(&kafkaBrokers, "kafka-brokers", "", "Comma-separated Kafka broker addresses; empty disables publishing")
	flag.StringVar(&kafkaTopic, "kafka-topic", "histfill-results", "Kafka topic to publish merged histograms to")
	flag.BoolVar(&kafkaCreateTopic, "kafka-create-topic", false, "Create the topic if it does not exist")
	flag.StringVar(&kafkaUsername, "kafka-username", "", "Kafka SASL username (optional)")
	flag.StringVar(&kafkaPassword, "kafka-password", "", "Kafka SASL password (optional)")
	flag.StringVar(&kafkaSASLMechanism, "kafka-sasl-mechanism", "PLAIN", "Kafka SASL mechanism: PLAIN, SCRAM-SHA-256, SCRAM-SHA-512")
	flag.Parse()

	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)

	if specPath == "" {
		fmt.Fprintf(os.Stderr, "error: --spec must be specified\n")
		flag.Usage()
		os.Exit(1)
	}
	if len(inputs) == 0 {
		fmt.Fprintf(os.Stderr, "error: at least one --input must be specified\n")
		flag.Usage()
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	metrics := fill.NewMetrics(reg)

	var metricsServer *http.Server
	if metricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: fmt.Sprintf(":%d", metricsPort), Handler: mux}
		go func() {
			level.Info(logger).Log("msg", "starting metrics server", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				level.Error(logger).Log("msg", "metrics server failed", "err", err)
				os.Exit(1)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		level.Info(logger).Log("msg", "received shutdown signal")
		cancel()
	}()

	cfg, err := fill.LoadConfig(specPath)
	if err != nil {
		level.Error(logger).Log("msg", "failed to load spec", "err", err)
		os.Exit(1)
	}

	runner, err := fill.NewRunner(fill.RunnerConfig{
		Specs:   cfg.Histograms,
		Workers: workers,
	}, metrics, logger)
	if err != nil {
		level.Error(logger).Log("msg", "failed to create runner", "err", err)
		os.Exit(1)
	}

	level.Info(logger).Log(
		"msg", "starting histfill",
		"histograms", len(cfg.Histograms),
		"shards", len(inputs),
		"workers", workers,
	)

	result, err := runner.Run(ctx, inputs)
	if err != nil {
		level.Error(logger).Log("msg", "run failed", "err", err)
		os.Exit(1)
	}

	local, err := sink.NewLocal(sink.LocalConfig{Path: outputDir}, logger)
	if err != nil {
		level.Error(logger).Log("msg", "failed to create output sink", "err", err)
		os.Exit(1)
	}
	runDir, err := local.Write(ctx, result.Histograms, result.Stats)
	if err != nil {
		level.Error(logger).Log("msg", "failed to persist run", "err", err)
		os.Exit(1)
	}

	if kafkaBrokers != "" {
		kafkaCfg := sink.KafkaConfig{
			Topic:         kafkaTopic,
			CreateTopic:   kafkaCreateTopic,
			SASLUsername:  kafkaUsername,
			SASLPassword:  kafkaPassword,
			SASLMechanism: kafkaSASLMechanism,
		}
		kafkaCfg.SetBrokersFromString(kafkaBrokers)

		publisher, err := sink.NewKafka(kafkaCfg, reg, logger)
		if err != nil {
			level.Error(logger).Log("msg", "failed to create kafka publisher", "err", err)
			os.Exit(1)
		}
		defer publisher.Close()

		if err := publisher.Publish(ctx, result.Histograms); err != nil {
			level.Error(logger).Log("msg", "failed to publish histograms", "err", err)
			os.Exit(1)
		}
	}

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			level.Error(logger).Log("msg", "metrics server shutdown failed", "err", err)
		}
	}

	level.Info(logger).Log(
		"msg", "done",
		"run_dir", runDir,
		"histograms", len(result.Histograms),
		"rows", result.Stats.Rows,
		"fills", result.Stats.Fills,
		"sync_conflicts", result.Stats.SyncConflicts,
		"nonfinite_values", result.Stats.NonFiniteValues,
	)
}
