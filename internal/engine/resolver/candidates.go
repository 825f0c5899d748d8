package resolver

import (
	"fmt"

	"pyimports/internal/core/errors"
)

type Strategy string

const (
	// StrategyMostDownloaded keeps one candidate per key, the one with the
	// highest download count. Ties keep the first candidate seen.
	StrategyMostDownloaded Strategy = "mostdownloaded"
	// StrategyAll keeps every candidate in insertion order.
	StrategyAll Strategy = "all"
)

func ParseStrategy(value string) (Strategy, error) {
	switch Strategy(value) {
	case StrategyMostDownloaded, StrategyAll:
		return Strategy(value), nil
	case "":
		return StrategyMostDownloaded, nil
	}
	return "", errors.New(errors.CodeValidationError, fmt.Sprintf("unknown resolution strategy %q", value))
}

type candidate struct {
	pkg   string
	count int64
}

// candidateTable maps a key to its candidate packages under a strategy.
type candidateTable struct {
	strategy  Strategy
	downloads map[string]int64
	all       map[string][]string
	best      map[string]candidate
}

func newCandidateTable(strategy Strategy, downloads map[string]int64) *candidateTable {
	return &candidateTable{
		strategy:  strategy,
		downloads: downloads,
		all:       make(map[string][]string),
		best:      make(map[string]candidate),
	}
}

func (t *candidateTable) insert(key, pkg string) {
	if t.strategy == StrategyAll {
		t.all[key] = append(t.all[key], pkg)
		return
	}

	count := t.downloads[pkg]
	incumbent, ok := t.best[key]
	if !ok || count > incumbent.count {
		t.best[key] = candidate{pkg: pkg, count: count}
	}
}

func (t *candidateTable) lookup(key string) []string {
	if t.strategy == StrategyAll {
		return t.all[key]
	}
	if c, ok := t.best[key]; ok {
		return []string{c.pkg}
	}
	return nil
}

func (t *candidateTable) size() int {
	if t.strategy == StrategyAll {
		return len(t.all)
	}
	return len(t.best)
}
