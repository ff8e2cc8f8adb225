package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"flasharb/internal/batch"
	"flasharb/internal/config"
	"flasharb/internal/dotenv"
	"flasharb/internal/ethutil"
	"flasharb/internal/journal"
	"flasharb/internal/ledger"
	"flasharb/internal/metrics"
	"flasharb/internal/monitor"
	"flasharb/internal/observe"
	"flasharb/internal/stats"
	"flasharb/internal/tokens"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := dotenv.Load(); err != nil {
		log.Printf("[warn] %v", err)
	}

	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	if err := run(cfg); err != nil {
		log.Fatalf("[fatal] %v", err)
	}
}

// run owns every resource of the process. Errors are returned rather than
// fatal so the deferred journal and HTTP shutdown always happen.
func run(cfg config.Config) (err error) {
	runStartedAt := time.Now()
	runID := uuid.NewString()
	journalW := journal.New(cfg.OutFile)
	journalSink := observe.NewJournal(journalW)
	if journalW != nil {
		log.Printf("Journal: %s (JSONL)", journalW.Path())
		defer func() {
			if err := journalW.Close(); err != nil {
				log.Printf("[warn] journal close: %v", err)
			}
		}()
		defer func() {
			extra := map[string]string{
				"uptime_ms": strconv.FormatInt(time.Since(runStartedAt).Milliseconds(), 10),
			}
			if err != nil {
				extra["err"] = err.Error()
			}
			appendLifecycle(journalW, "shutdown", runID, cfg, err == nil, extra)
		}()
		appendLifecycle(journalW, "start", runID, cfg, false, nil)
	}

	log.Printf("Flash-loan arbitrage orchestrator (run %s)", runID)
	log.Printf("Mode: %s", cfg.Mode)
	log.Printf("Contract: %s", cfg.Contract.Hex())
	if cfg.Mode.Submits() {
		log.Printf("Sender: %s", cfg.Sender.Hex())
		log.Printf("Worklist: %s", worklistLabels(cfg.Worklist))
		log.Printf("Amount per attempt: %s (smallest units)", cfg.Amount)
	}
	if cfg.Mode.Monitors() {
		log.Printf("Events: %v", cfg.Events)
		log.Printf("Poll interval: %s (overall=%v)", cfg.PollInterval, cfg.PollOverall)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			log.Printf("Shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, "flasharb")
	console := observe.NewConsole(os.Stdout, cfg.NoColor)

	sinks := []observe.Sink{console, journalSink, m}
	if cfg.HTTPAddr != "" {
		bc := observe.NewBroadcaster()
		defer bc.Close()
		sinks = append(sinks, bc)
		srv := serveHTTP(cfg.HTTPAddr, reg, bc)
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Printf("[warn] http shutdown: %v", err)
			}
		}()
	}
	sink := observe.Multi(sinks...)

	var contractABI *abi.ABI
	if cfg.ABIPath != "" {
		parsed, err := ledger.LoadABI(cfg.ABIPath)
		if err != nil {
			return err
		}
		contractABI = &parsed
	}

	client, err := ledger.Dial(ctx, ledger.Options{
		URL:             cfg.RPCURL,
		Contract:        cfg.Contract,
		PrivateKey:      cfg.PrivateKey,
		ChainID:         cfg.ChainID,
		ABI:             contractABI,
		ConfirmTimeout:  cfg.ConfirmTimeout,
		GasLimit:        cfg.GasLimit,
		GasPriceBumpPct: cfg.GasPriceBumpPct,
	})
	if err != nil {
		if ctx.Err() != nil {
			// Context cancellation (SIGINT/SIGTERM) while dialing.
			return nil
		}
		return err
	}
	defer client.Close()
	rec := stats.NewReconciler(client)

	if cfg.Mode.Monitors() {
		mon := monitor.New(client, rec, monitor.Options{Registry: cfg.Registry, Sink: sink})
		sub, err := mon.Start(ctx, cfg.Events)
		if err != nil {
			m.ObserveError(err)
			return fmt.Errorf("monitor: %w", err)
		}
		defer sub.Close()
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case err := <-sub.Err():
					m.ObserveError(err)
				}
			}
		}()

		poller, err := monitor.StartPolling(ctx, rec, sink, monitor.PollOptions{
			Interval:       cfg.PollInterval,
			IncludeOverall: cfg.PollOverall,
			OnError: func(err error) {
				log.Printf("[warn] stats poll failed: %v", err)
				m.ObserveError(err)
			},
		})
		if err != nil {
			return fmt.Errorf("poller: %w", err)
		}
		defer poller.Stop()
	}

	if cfg.Mode.Submits() {
		orch := batch.New(client, rec, batch.Options{ProfitThreshold: cfg.ProfitThreshold, RunID: runID})
		summary, err := orch.Run(ctx, cfg.Worklist, cfg.Amount, sink.OnTrade)
		if summary != nil {
			console.Summary(summary)
			journalSink.Summary(summary)
		}
		switch {
		case errors.Is(err, context.Canceled):
			return nil
		case err != nil:
			log.Printf("[warn] batch: %v", err)
		}
		if !cfg.Mode.Monitors() {
			return nil
		}
		log.Printf("[info] batch done; monitoring until interrupted")
	}

	<-ctx.Done()
	return nil
}

func serveHTTP(addr string, reg *prometheus.Registry, bc *observe.Broadcaster) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.Handle("/ws", bc.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Printf("[info] http listening on %s (/metrics /ws /healthz)", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[warn] http server: %v", err)
		}
	}()
	return srv
}

func appendLifecycle(w *journal.Writer, event, runID string, cfg config.Config, ok bool, extra map[string]string) {
	fields := map[string]string{
		"mode":     string(cfg.Mode),
		"contract": cfg.Contract.Hex(),
	}
	if cfg.Mode.Submits() {
		fields["sender"] = cfg.Sender.Hex()
		fields["worklist"] = worklistLabels(cfg.Worklist)
		addrs := make([]common.Address, 0, len(cfg.Worklist))
		for _, t := range cfg.Worklist {
			addrs = append(addrs, t.Address)
		}
		fields["worklist_addresses"] = ethutil.JoinHex(addrs)
		fields["amount"] = cfg.Amount.String()
	}
	for k, v := range extra {
		fields[k] = v
	}
	if err := w.Append(journal.Record{Event: event, RunID: runID, Ok: ok, Fields: fields}); err != nil {
		log.Printf("[warn] journal write failed: %v", err)
	}
}

func worklistLabels(list []tokens.Token) string {
	labels := make([]string, 0, len(list))
	for _, t := range list {
		labels = append(labels, t.Label())
	}
	return strings.Join(labels, ",")
}
