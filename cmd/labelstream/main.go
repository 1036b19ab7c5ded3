package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"labelstream/config"
	"labelstream/internal/connector"
	"labelstream/internal/connector/httpstream"
	"labelstream/internal/connector/redisconn"
	"labelstream/internal/logger"
	"labelstream/internal/metrics"
	"labelstream/internal/output/triplejson"
	"labelstream/internal/rules"
	"labelstream/internal/stream"
)

func findConfigFile(configArg string) string {
	if configArg != "" {
		path := configArg
		if _, err := os.Stat(path); err == nil {
			return path
		}
		log.Printf("Warning: config file not found at %s, trying default locations", path)
	}

	if _, err := os.Stat("labelstream.yml"); err == nil {
		return "labelstream.yml"
	}

	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		path := filepath.Join(exeDir, "labelstream.yml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "labelstream.yml"
}

func applyDefaults(cfg *config.Config) {
	ls := &cfg.LabelStream

	if ls.Input.Mode == "" {
		ls.Input.Mode = "http"
	}
	if ls.Input.Redis.Addr == "" {
		ls.Input.Redis.Addr = "127.0.0.1:6379"
	}
	if ls.Input.Redis.EventsKey == "" {
		ls.Input.Redis.EventsKey = "events"
	}
	if ls.Input.Redis.LabelsKey == "" {
		ls.Input.Redis.LabelsKey = "labels"
	}
	if ls.Input.Redis.BlockTimeout == 0 {
		ls.Input.Redis.BlockTimeout = 5 * time.Second
	}
	if ls.Input.HTTP.Timeout <= 0 {
		ls.Input.HTTP.Timeout = 10 * time.Second
	}

	if ls.Stream.MinBatchSize <= 0 {
		ls.Stream.MinBatchSize = 25
	}
	if ls.Stream.MaxBatchSize <= 0 {
		ls.Stream.MaxBatchSize = 100
	}

	if ls.Output.Mode == "" {
		ls.Output.Mode = "file"
	}
	if ls.Output.File.Path == "" {
		ls.Output.File.Path = "output/triples.jsonl"
	}

	if ls.Metrics.Addr == "" {
		ls.Metrics.Addr = ":9090"
	}
	if ls.Logging.Level == "" {
		ls.Logging.Level = "info"
	}
}

// sourceConnector is what the binary needs from a connector beyond the
// stream contract.
type sourceConnector interface {
	connector.Connector
	Close() error
}

func buildConnector(ctx context.Context, cfg *config.Config) (sourceConnector, error) {
	in := cfg.LabelStream.Input
	switch in.Mode {
	case "redis":
		return redisconn.New(redisconn.Config{
			Addr:         in.Redis.Addr,
			Password:     in.Redis.Password,
			DB:           in.Redis.DB,
			EventsKey:    in.Redis.EventsKey,
			LabelsKey:    in.Redis.LabelsKey,
			BlockTimeout: in.Redis.BlockTimeout,
		})
	case "http":
		headers := map[string]string{}
		if in.HTTP.BearerToken != "" {
			headers["Authorization"] = "Bearer " + in.HTTP.BearerToken
		}
		streamRules := make([]httpstream.Rule, 0, len(in.HTTP.Rules))
		for _, r := range in.HTTP.Rules {
			streamRules = append(streamRules, httpstream.Rule{Value: r.Value, Tag: r.Tag})
		}
		conn, err := httpstream.New(httpstream.Config{
			StreamURL: in.HTTP.StreamURL,
			LookupURL: in.HTTP.LookupURL,
			RulesURL:  in.HTTP.RulesURL,
			Rules:     streamRules,
			Headers:   headers,
			Timeout:   in.HTTP.Timeout,
		})
		if err != nil {
			return nil, err
		}
		if err := conn.SetupRules(ctx); err != nil {
			return nil, err
		}
		return conn, nil
	default:
		return nil, fmt.Errorf("unknown input mode %q", in.Mode)
	}
}

func delaySelector(sc config.StreamConfig) (stream.DelaySelector, error) {
	if sc.DelayField != "" {
		return stream.DelaySelector{Field: sc.DelayField}, nil
	}
	if sc.Delay == "" {
		return stream.DelaySelector{}, nil
	}
	if d, err := time.ParseDuration(sc.Delay); err == nil {
		return stream.FixedDelay(d), nil
	}
	if f, err := strconv.ParseFloat(sc.Delay, 64); err == nil {
		return stream.DelaySelector{Fixed: f}, nil
	}
	return stream.DelaySelector{}, fmt.Errorf("unparseable fixed delay %q", sc.Delay)
}

func run(args []string) int {
	configArg := ""
	if len(args) > 0 {
		configArg = args[0]
	}

	configPath := findConfigFile(configArg)
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		return 1
	}
	applyDefaults(cfg)

	ls := cfg.LabelStream
	if err := logger.Init(ls.Logging.Enabled, ls.Logging.Level, ls.Logging.File, ls.Logging.Console); err != nil {
		log.Printf("Failed to initialize logger: %v", err)
		return 1
	}

	logger.Infof("labelstream starting")
	logger.Infof("Config loaded from: %s", configPath)

	if ls.Metrics.Enabled {
		go func() {
			logger.Infof("Metrics listening on %s", ls.Metrics.Addr)
			if err := metrics.Serve(ls.Metrics.Addr); err != nil {
				logger.Errorf("Metrics server stopped: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infof("Received %v, shutting down", sig)
		cancel()
	}()

	conn, err := buildConnector(ctx, cfg)
	if err != nil {
		logger.Errorf("Failed to build connector: %v", err)
		return 1
	}
	defer conn.Close()

	var source connector.Connector = conn
	if ls.Rules.Enabled {
		filter, stats, err := rules.NewFilter(ls.Rules.Path)
		if err != nil {
			logger.Errorf("Failed to load filter rules: %v", err)
			return 1
		}
		logger.Infof("Filter rules loaded: %d of %d files", stats.Loaded, stats.TotalFiles)
		source = connector.Filtered(source, filter)
	}

	delay, err := delaySelector(ls.Stream)
	if err != nil {
		logger.Errorf("Invalid stream config: %v", err)
		return 1
	}

	st, err := stream.New(source, stream.Options{
		Moment:       stream.MomentSelector{Field: ls.Stream.MomentField},
		Delay:        delay,
		Key:          stream.KeySelector{Field: ls.Stream.KeyField},
		MinBatchSize: ls.Stream.MinBatchSize,
		MaxBatchSize: ls.Stream.MaxBatchSize,
		CopyOnEmit:   ls.Stream.CopyOnEmit,
	})
	if err != nil {
		logger.Errorf("Failed to build stream: %v", err)
		return 1
	}

	var writer *triplejson.Writer
	switch ls.Output.Mode {
	case "stdout":
		writer = triplejson.NewConsoleWriter()
	case "file":
		writer, err = triplejson.NewWriter(ls.Output.File.Path)
		if err != nil {
			logger.Errorf("Failed to open output: %v", err)
			return 1
		}
	default:
		logger.Errorf("Unknown output mode %q", ls.Output.Mode)
		return 1
	}
	defer writer.Close()

	exitCode := 0
	for {
		tr, err := st.Next(ctx)
		if err == io.EOF {
			logger.Infof("Event stream ended")
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				logger.Infof("Stream interrupted")
				break
			}
			logger.Errorf("Stream failed: %v", err)
			exitCode = 1
			break
		}
		if err := writer.Write(tr); err != nil {
			logger.Errorf("Failed to write triple: %v", err)
			exitCode = 1
			break
		}
	}

	if exitCode == 0 && ls.Stream.FlushOnExit {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer flushCancel()
		logger.Infof("Flushing %d pending and %d buffered entries", st.Pending(), st.Buffered())
		if err := st.Flush(flushCtx); err != nil {
			logger.Errorf("Flush failed: %v", err)
		}
		for {
			tr, err := st.Next(flushCtx)
			if err != nil {
				break
			}
			if err := writer.Write(tr); err != nil {
				logger.Errorf("Failed to write triple: %v", err)
				break
			}
		}
	}

	logger.Infof("labelstream stopped")
	return exitCode
}

func main() {
	args := os.Args[1:]
	if len(args) > 0 && args[0] == "run" {
		args = args[1:]
	}
	os.Exit(run(args))
}
