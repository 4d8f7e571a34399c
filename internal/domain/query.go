package domain

// QueryState carries one query run through the answer pipeline. It is owned by
// exactly one run and never shared across concurrent queries.
type QueryState struct {
	// Query is the user's question, set once at the start of the run.
	Query string
	// UseInternalIndex is the routing decision: internal index vs web search.
	UseInternalIndex bool
	// Context holds the retrieved passages handed to the synthesizer.
	Context []string
	// Sources identifies where the context came from (URLs or document refs).
	Sources []string
	// Response is the synthesized answer, empty until generation completes.
	Response string
}

// WebResult is a single structured web-search hit. The formatted context
// string is derived from these, never the other way around.
type WebResult struct {
	Title   string
	URL     string
	Content string
}
