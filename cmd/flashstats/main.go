package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"flasharb/internal/config"
	"flasharb/internal/dotenv"
	"flasharb/internal/ledger"
	"flasharb/internal/observe"
	"flasharb/internal/stats"
)

func main() {
	log.SetFlags(0)

	if err := dotenv.Load(); err != nil {
		log.Printf("[warn] %v", err)
	}

	cfg, err := config.LoadStats(os.Args[1:], os.Getenv)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var opts ledger.Options
	opts.URL = cfg.RPCURL
	opts.Contract = cfg.Contract
	opts.ChainID = cfg.ChainID
	if cfg.ABIPath != "" {
		parsed, err := ledger.LoadABI(cfg.ABIPath)
		if err != nil {
			log.Fatalf("[fatal] %v", err)
		}
		opts.ABI = &parsed
	}
	client, err := ledger.Dial(ctx, opts)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	defer client.Close()

	rec := stats.NewReconciler(client)
	console := observe.NewConsole(os.Stdout, cfg.NoColor)

	agg, err := rec.Aggregate(ctx)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	console.OnStats(agg)

	// Older deployments lack getOverallStats; the rest of the dump still works.
	if overall, err := rec.Overall(ctx); err != nil {
		log.Printf("[warn] overall stats: %v", err)
	} else {
		console.OnOverall(overall)
	}

	fmt.Println("\nPer-token Stats:")
	for _, tok := range cfg.Worklist {
		snap, err := rec.Token(ctx, tok)
		if err != nil {
			log.Printf("[warn] %s: %v", tok.Label(), err)
			continue
		}
		fmt.Printf("%s (%s): profit=%s attempts=%d\n", tok.Label(), tok.Address.Hex(), tok.Format(snap.TotalProfit), snap.Attempts)
	}
}
