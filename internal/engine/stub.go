package engine

import "context"

// StubModelClient answers without calling any service: it echoes the scanner
// source from the user message back as a fenced block, leaving the structural
// rewrite to the compliance enforcer. Used for development and tests.
type StubModelClient struct{}

func (m *StubModelClient) Complete(_ context.Context, req CompletionRequest) (string, error) {
	code := ExtractCode(req.UserMessage)
	if code == "" {
		return "", ErrEmptyResponse
	}
	return "```python\n" + code + "\n```", nil
}
