package observability

// Span and attribute names recorded around the completion pipeline,
// following the teacher's flat Attr*/Span* constant pattern
// (pkg/observability/constants.go).
const (
	AttrHTTPMethod     = "http.method"
	AttrHTTPPath       = "http.path"
	AttrHTTPStatusCode = "http.status_code"
	AttrAssistantID    = "lamb.assistant.id"
	AttrConnector      = "lamb.connector"
	AttrOrchestrator   = "lamb.orchestrator"
	AttrToolName       = "lamb.tool.name"
	AttrErrorType      = "error.type"

	SpanHTTPRequest     = "http.request"
	SpanCompletion      = "completion.run"
	SpanConnectorCall   = "connector.call"
	SpanToolInvocation  = "tool.invocation"
	SpanChatPersistence = "chat.persist"
)
