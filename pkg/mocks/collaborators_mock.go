// Package mocks provides testify doubles for the workflow collaborators.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/chatloom/chatloom/pkg/models"
	"github.com/chatloom/chatloom/pkg/protocol"
)

// MockModelClient is a mock implementation of protocol.ModelClient.
type MockModelClient struct {
	mock.Mock
}

func (m *MockModelClient) Invoke(ctx context.Context, req protocol.ModelRequest) (*protocol.ModelResponse, error) {
	args := m.Called(ctx, req)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*protocol.ModelResponse), args.Error(1)
}

// MockStreamingModelClient additionally implements protocol.StreamingModelClient.
type MockStreamingModelClient struct {
	MockModelClient

	Tokens []string
}

func (m *MockStreamingModelClient) InvokeStream(ctx context.Context, req protocol.ModelRequest, onToken func(string)) (*protocol.ModelResponse, error) {
	args := m.Called(ctx, req)

	for _, token := range m.Tokens {
		onToken(token)
	}

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*protocol.ModelResponse), args.Error(1)
}

// MockRetriever is a mock implementation of protocol.Retriever. SearchCalls
// counts invocations so tests can assert a search never happened.
type MockRetriever struct {
	mock.Mock

	SearchCalls int
}

func (m *MockRetriever) Search(ctx context.Context, query string, documentIDs []string, topK int) ([]protocol.RetrievedChunk, error) {
	m.SearchCalls++

	args := m.Called(ctx, query, documentIDs, topK)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]protocol.RetrievedChunk), args.Error(1)
}

// MockToolDispatcher is a mock implementation of protocol.ToolDispatcher.
type MockToolDispatcher struct {
	mock.Mock
}

func (m *MockToolDispatcher) Schemas(toolSet []string) []protocol.ToolSchema {
	args := m.Called(toolSet)

	if args.Get(0) == nil {
		return nil
	}

	return args.Get(0).([]protocol.ToolSchema)
}

func (m *MockToolDispatcher) Dispatch(ctx context.Context, call models.ToolCall) (*models.ToolResult, error) {
	args := m.Called(ctx, call)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.ToolResult), args.Error(1)
}

// MockMemoryStore is a mock implementation of protocol.MemoryStore.
type MockMemoryStore struct {
	mock.Mock
}

func (m *MockMemoryStore) Fold(ctx context.Context, conversationID string, messages []models.Message) error {
	args := m.Called(ctx, conversationID, messages)

	return args.Error(0)
}
