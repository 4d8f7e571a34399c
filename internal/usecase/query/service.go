// Package query drives one question through the answer pipeline: route the
// query to the internal index or the live web, collect context, synthesize.
package query

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/docsage/docsage/internal/domain"
	"github.com/docsage/docsage/internal/metrics"
	"github.com/docsage/docsage/internal/transport/tavily"
)

// retrieveLimit caps how many index hits feed the synthesizer.
const retrieveLimit = 5

// webSearchUnavailable substitutes for context when no search key is configured.
const webSearchUnavailable = "Web search is not available."

// state names one step of the pipeline. Exactly one of stateRetrieve and
// stateSearch executes per run; they are exclusive branches, not a fallback
// chain.
type state int

const (
	stateStart state = iota
	stateRoute
	stateRetrieve
	stateSearch
	stateGenerate
	stateEnd
)

// recencyKeywords route a query to live web search when any of them appears
// (case-insensitive) in the query text.
var recencyKeywords = []string{
	"recent", "recently", "latest", "breaking", "current",
	"news", "update", "updated", "trend", "trending",
	"today", "now", "release", "announcement",
	"2024", "2025", "2026",
}

// Service owns the query pipeline. The web searcher may be nil when no search
// key is configured; that branch then yields a placeholder context entry.
type Service struct {
	retriever Retriever
	web       WebSearcher
	generator Generator
	logger    *zap.Logger
}

// New creates the query orchestrator.
func New(retriever Retriever, web WebSearcher, generator Generator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{retriever: retriever, web: web, generator: generator, logger: logger}
}

// Run executes the pipeline for one query and returns the final state. The
// QueryState is owned exclusively by this run.
func (s *Service) Run(ctx context.Context, query string) (domain.QueryState, error) {
	st := domain.QueryState{Query: query}

	for cur := stateRoute; cur != stateEnd; {
		next, err := s.step(ctx, cur, &st)
		if err != nil {
			return st, err
		}
		cur = next
	}
	return st, nil
}

func (s *Service) step(ctx context.Context, cur state, st *domain.QueryState) (state, error) {
	switch cur {
	case stateRoute:
		st.UseInternalIndex = routeToIndex(st.Query)
		if st.UseInternalIndex {
			metrics.QueriesTotal.WithLabelValues("internal").Inc()
			return stateRetrieve, nil
		}
		metrics.QueriesTotal.WithLabelValues("web").Inc()
		return stateSearch, nil

	case stateRetrieve:
		if err := s.retrieve(ctx, st); err != nil {
			return stateEnd, err
		}
		return stateGenerate, nil

	case stateSearch:
		s.searchWeb(ctx, st)
		return stateGenerate, nil

	case stateGenerate:
		answer, err := s.generator.Generate(ctx, st.Query, st.Context)
		if err != nil {
			return stateEnd, fmt.Errorf("generate answer: %w", err)
		}
		st.Response = answer
		return stateEnd, nil

	default:
		return stateEnd, fmt.Errorf("unexpected pipeline state %d", cur)
	}
}

// retrieve fills context and sources from the internal index. Source identity
// comes from the hit's url metadata, then its source, else it is omitted.
func (s *Service) retrieve(ctx context.Context, st *domain.QueryState) error {
	results, err := s.retriever.Search(ctx, st.Query, retrieveLimit)
	if err != nil {
		return fmt.Errorf("retrieve context: %w", err)
	}

	for _, res := range results {
		st.Context = append(st.Context, res.Text)
		if url, ok := res.Metadata["url"]; ok && url != "" {
			st.Sources = append(st.Sources, url)
		} else if src, ok := res.Metadata["source"]; ok && src != "" {
			st.Sources = append(st.Sources, src)
		}
	}

	s.logger.Debug("retrieved from index",
		zap.Int("passages", len(st.Context)),
		zap.Int("sources", len(st.Sources)),
	)
	return nil
}

// searchWeb fills context and sources from live search. Search failures are
// folded into the context as text so the run always reaches generation.
func (s *Service) searchWeb(ctx context.Context, st *domain.QueryState) {
	if s.web == nil {
		st.Context = []string{webSearchUnavailable}
		return
	}

	results, err := s.web.Search(ctx, st.Query)
	if err != nil {
		s.logger.Warn("web search failed", zap.Error(err))
		st.Context = []string{fmt.Sprintf("Error searching the web: %v", err)}
		return
	}

	st.Context = []string{tavily.FormatResults(results)}
	st.Sources = tavily.Sources(results)
}

// routeToIndex classifies the query: recency intent goes to the web, anything
// else to the internal index. Pure function of the query text.
func routeToIndex(query string) bool {
	q := strings.ToLower(query)
	for _, kw := range recencyKeywords {
		if strings.Contains(q, kw) {
			return false
		}
	}
	return true
}
