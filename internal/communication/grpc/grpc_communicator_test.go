package grpccomm

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/AnishMulay/vtfs/internal/communication"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoRequest struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

func startServer(t *testing.T, handler communication.MessageHandler) *GRPCCommunicator {
	t.Helper()
	server := NewGRPCCommunicator("127.0.0.1:0", nil)
	server.RegisterPayloadType("echo", reflect.TypeOf(echoRequest{}))
	require.NoError(t, server.Start(handler))
	t.Cleanup(func() { _ = server.Stop() })
	return server
}

func sendCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestGRPCCommunicator_RoundTrip(t *testing.T) {
	received := make(chan communication.Message, 1)
	server := startServer(t, func(ctx context.Context, msg communication.Message) (*communication.Response, error) {
		received <- msg
		req := msg.Payload.(echoRequest)
		body, _ := json.Marshal(req)
		return &communication.Response{Code: communication.CodeOK, Body: body}, nil
	})

	client := NewGRPCCommunicator("", nil)
	defer client.Stop()

	resp, err := client.Send(sendCtx(t), server.Address(), communication.Message{
		From:    "test",
		Type:    "echo",
		Payload: echoRequest{Text: "hi", Count: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, communication.CodeOK, resp.Code)

	var echoed echoRequest
	require.NoError(t, resp.Decode(&echoed))
	assert.Equal(t, echoRequest{Text: "hi", Count: 3}, echoed)

	got := <-received
	assert.Equal(t, "test", got.From)
	assert.NotEmpty(t, got.ID, "a request id is assigned on send")
}

func TestGRPCCommunicator_EmptyPayloadIsZeroValue(t *testing.T) {
	server := startServer(t, func(ctx context.Context, msg communication.Message) (*communication.Response, error) {
		if _, ok := msg.Payload.(echoRequest); !ok {
			return &communication.Response{Code: communication.CodeBadRequest}, nil
		}
		return &communication.Response{Code: communication.CodeOK}, nil
	})

	client := NewGRPCCommunicator("", nil)
	defer client.Stop()

	resp, err := client.Send(sendCtx(t), server.Address(), communication.Message{Type: "echo"})
	require.NoError(t, err)
	assert.Equal(t, communication.CodeOK, resp.Code)
}

func TestGRPCCommunicator_HandlerErrorBecomesInternal(t *testing.T) {
	server := startServer(t, func(ctx context.Context, msg communication.Message) (*communication.Response, error) {
		return nil, errors.New("boom")
	})

	client := NewGRPCCommunicator("", nil)
	defer client.Stop()

	resp, err := client.Send(sendCtx(t), server.Address(), communication.Message{Type: "echo"})
	require.NoError(t, err)
	assert.Equal(t, communication.CodeInternal, resp.Code)
	assert.Equal(t, "boom", string(resp.Body))
}

func TestGRPCCommunicator_MalformedPayload(t *testing.T) {
	server := startServer(t, func(ctx context.Context, msg communication.Message) (*communication.Response, error) {
		return &communication.Response{Code: communication.CodeOK}, nil
	})

	client := NewGRPCCommunicator("", nil)
	defer client.Stop()

	// A string where the registered type expects an object.
	resp, err := client.Send(sendCtx(t), server.Address(), communication.Message{Type: "echo", Payload: "not an object"})
	require.NoError(t, err)
	assert.Equal(t, communication.CodeBadRequest, resp.Code)
}

func TestGRPCCommunicator_StopIsIdempotent(t *testing.T) {
	server := NewGRPCCommunicator("127.0.0.1:0", nil)
	require.NoError(t, server.Start(func(ctx context.Context, msg communication.Message) (*communication.Response, error) {
		return &communication.Response{Code: communication.CodeOK}, nil
	}))
	assert.NoError(t, server.Stop())
	assert.NoError(t, server.Stop())
}

func TestGRPCCommunicator_ListenFailure(t *testing.T) {
	server := NewGRPCCommunicator("256.0.0.1:99999", nil)
	err := server.Start(func(ctx context.Context, msg communication.Message) (*communication.Response, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, communication.ErrListenFailed)
}
