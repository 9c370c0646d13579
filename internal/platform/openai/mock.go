package openai

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

type MockResponse struct {
	JSON string
	Err  error
}

type MockCall struct {
	System     string
	User       string
	SchemaName string
}

// MockClient replays canned responses in order and records calls.
type MockClient struct {
	mu        sync.Mutex
	responses []MockResponse
	Calls     []MockCall
}

func NewMockClient(responses ...MockResponse) *MockClient {
	return &MockClient{responses: responses}
}

func (m *MockClient) ModelID() string { return "mock" }

func (m *MockClient) GenerateJSON(_ context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockCall{System: system, User: user, SchemaName: schemaName})
	if len(m.responses) == 0 {
		return nil, errors.New("mock: no responses queued")
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	if resp.Err != nil {
		return nil, resp.Err
	}
	if schema != nil {
		return decodeAndValidate(schemaName, schema, resp.JSON)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(resp.JSON), &out); err != nil {
		return nil, err
	}
	return out, nil
}
