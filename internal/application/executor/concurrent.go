package executor

import (
	"context"
	"log/slog"
	"runtime"
	"sort"
	"sync"

	"github.com/quantfork/optsim/internal/domain"
)

// fetchQuotes pulls quotes for a symbol set through a worker pool and keys
// the results back by symbol. Symbols that fail to quote are absent from
// the map; callers decide whether that is fatal for them.
//
// With workers <= 0 it uses runtime.NumCPU() x 2 to saturate the cores.
func (e *Executor) fetchQuotes(ctx context.Context, symbols []string) map[string]domain.Quote {
	workers := e.cfg.QuoteWorkers
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}

	type result struct {
		symbol string
		quote  domain.Quote
	}

	workCh := make(chan string, len(symbols))
	resultCh := make(chan result, len(symbols))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sym := range workCh {
				q, err := e.market.GetQuote(ctx, sym)
				if err != nil {
					slog.Debug("quote fetch failed", "symbol", sym, "err", err)
					continue
				}
				resultCh <- result{symbol: sym, quote: q}
			}
		}()
	}

	seen := map[string]bool{}
	queued := 0
	for _, sym := range symbols {
		if seen[sym] {
			continue
		}
		seen[sym] = true
		workCh <- sym
		queued++
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	quotes := make(map[string]domain.Quote, queued)
	for r := range resultCh {
		quotes[r.symbol] = r.quote
	}

	slog.Debug("quote fan-out complete",
		"symbols_queued", queued,
		"quoted", len(quotes),
		"workers", workers,
	)
	return quotes
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
