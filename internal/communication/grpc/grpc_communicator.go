package grpccomm

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"reflect"
	"sync"

	"github.com/AnishMulay/vtfs/internal/communication"
	"github.com/AnishMulay/vtfs/internal/log_service"
	"github.com/google/uuid"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const sendMessageMethod = "/vtfs.MessageService/SendMessage"

// messageServiceServer is the single unary RPC every message goes through.
// Requests and responses are JSON documents carried in a BytesValue, so no
// generated stubs are needed.
type messageServiceServer interface {
	SendMessage(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
}

var messageServiceDesc = grpc.ServiceDesc{
	ServiceName: "vtfs.MessageService",
	HandlerType: (*messageServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SendMessage",
			Handler:    sendMessageHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "vtfs/message_service",
}

func sendMessageHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(messageServiceServer).SendMessage(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: sendMessageMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(messageServiceServer).SendMessage(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

// wireMessage is the JSON form of communication.Message.
type wireMessage struct {
	ID      string          `json:"id"`
	From    string          `json:"from"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type GRPCCommunicator struct {
	listenAddress string
	handler       communication.MessageHandler
	grpcServer    *grpc.Server
	ls            log_service.LogService

	clientLock   sync.RWMutex
	clients      map[string]*grpc.ClientConn
	payloadLock  sync.RWMutex
	payloadTypes map[string]reflect.Type
	stopped      bool
	stopMutex    sync.RWMutex
}

func NewGRPCCommunicator(addr string, ls log_service.LogService) *GRPCCommunicator {
	if ls == nil {
		ls = log_service.NopLogService{}
	}
	return &GRPCCommunicator{
		listenAddress: addr,
		ls:            ls,
		clients:       make(map[string]*grpc.ClientConn),
		payloadTypes:  make(map[string]reflect.Type),
	}
}

// Address returns the bound address once started, so ":0" resolves to the
// real port.
func (c *GRPCCommunicator) Address() string {
	return c.listenAddress
}

func (c *GRPCCommunicator) RegisterPayloadType(msgType string, payloadType reflect.Type) {
	c.payloadLock.Lock()
	defer c.payloadLock.Unlock()
	c.payloadTypes[msgType] = payloadType
}

func (c *GRPCCommunicator) Start(handler communication.MessageHandler) error {
	c.ls.Info(log_service.LogEvent{
		Message:  "Starting GRPC communicator",
		Metadata: map[string]any{"address": c.listenAddress},
	})

	c.handler = handler
	c.grpcServer = grpc.NewServer()
	c.grpcServer.RegisterService(&messageServiceDesc, &grpcServer{comm: c})

	lis, err := net.Listen("tcp", c.listenAddress)
	if err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Failed to listen on address",
			Metadata: map[string]any{"address": c.listenAddress, "error": err.Error()},
		})
		return fmt.Errorf("%w: %v", communication.ErrListenFailed, err)
	}
	c.listenAddress = lis.Addr().String()

	c.ls.Info(log_service.LogEvent{
		Message:  "GRPC communicator started successfully",
		Metadata: map[string]any{"address": c.listenAddress},
	})

	go func() {
		if err := c.grpcServer.Serve(lis); err != nil {
			c.ls.Error(log_service.LogEvent{
				Message:  "GRPC server error",
				Metadata: map[string]any{"address": c.listenAddress, "error": err.Error()},
			})
		}
	}()
	return nil
}

func (c *GRPCCommunicator) Stop() error {
	c.stopMutex.Lock()
	defer c.stopMutex.Unlock()

	if c.stopped {
		c.ls.Debug(log_service.LogEvent{
			Message:  "GRPC communicator already stopped, skipping",
			Metadata: map[string]any{"address": c.listenAddress},
		})
		return nil
	}

	c.ls.Info(log_service.LogEvent{
		Message:  "Stopping GRPC communicator",
		Metadata: map[string]any{"address": c.listenAddress},
	})

	if c.grpcServer != nil {
		c.grpcServer.GracefulStop()
	}

	c.clientLock.Lock()
	for to, conn := range c.clients {
		_ = conn.Close()
		delete(c.clients, to)
	}
	c.clientLock.Unlock()

	c.stopped = true
	c.ls.Info(log_service.LogEvent{
		Message:  "GRPC communicator stopped successfully",
		Metadata: map[string]any{"address": c.listenAddress},
	})

	return nil
}

func (c *GRPCCommunicator) conn(to string) (*grpc.ClientConn, error) {
	c.clientLock.RLock()
	conn, ok := c.clients[to]
	c.clientLock.RUnlock()
	if ok {
		return conn, nil
	}

	c.ls.Debug(log_service.LogEvent{
		Message:  "Creating new GRPC client",
		Metadata: map[string]any{"to": to},
	})

	conn, err := grpc.NewClient(to, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Failed to create GRPC client",
			Metadata: map[string]any{"to": to, "error": err.Error()},
		})
		return nil, communication.ErrClientCreateFailed
	}

	c.clientLock.Lock()
	defer c.clientLock.Unlock()
	if existing, ok := c.clients[to]; ok {
		_ = conn.Close()
		return existing, nil
	}
	c.clients[to] = conn
	return conn, nil
}

func (c *GRPCCommunicator) Send(ctx context.Context, to string, msg communication.Message) (*communication.Response, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	c.ls.Debug(log_service.LogEvent{
		Message:  "Sending GRPC message",
		Metadata: map[string]any{"to": to, "type": msg.Type, "from": msg.From, "id": msg.ID},
	})

	conn, err := c.conn(to)
	if err != nil {
		return nil, err
	}

	wire := wireMessage{ID: msg.ID, From: msg.From, Type: msg.Type}
	if msg.Payload != nil {
		wire.Payload, err = json.Marshal(msg.Payload)
		if err != nil {
			c.ls.Error(log_service.LogEvent{
				Message:  "Failed to marshal payload",
				Metadata: map[string]any{"to": to, "type": msg.Type, "error": err.Error()},
			})
			return nil, communication.ErrPayloadMarshalFailed
		}
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, communication.ErrMessageMarshalFailed
	}

	out := new(wrapperspb.BytesValue)
	if err := conn.Invoke(ctx, sendMessageMethod, wrapperspb.Bytes(body), out); err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Failed to send GRPC message",
			Metadata: map[string]any{"to": to, "type": msg.Type, "error": err.Error()},
		})
		return nil, fmt.Errorf("%w: %v", communication.ErrMessageSendFailed, err)
	}

	var resp communication.Response
	if err := json.Unmarshal(out.GetValue(), &resp); err != nil {
		return nil, communication.ErrPayloadUnmarshalFailed
	}

	c.ls.Debug(log_service.LogEvent{
		Message:  "GRPC message sent successfully",
		Metadata: map[string]any{"to": to, "type": msg.Type, "responseCode": resp.Code},
	})
	return &resp, nil
}

// decode turns a wire message into a communication.Message whose payload is
// the registered request type. Unregistered types keep a nil payload and are
// left for the handler to reject.
func (c *GRPCCommunicator) decode(wire wireMessage) (communication.Message, error) {
	msg := communication.Message{ID: wire.ID, From: wire.From, Type: wire.Type}

	c.payloadLock.RLock()
	payloadType, ok := c.payloadTypes[wire.Type]
	c.payloadLock.RUnlock()

	if !ok {
		c.ls.Warn(log_service.LogEvent{
			Message:  "No payload type registered for message type",
			Metadata: map[string]any{"from": wire.From, "type": wire.Type},
		})
		return msg, nil
	}

	payload := reflect.New(payloadType)
	if len(wire.Payload) > 0 {
		if err := json.Unmarshal(wire.Payload, payload.Interface()); err != nil {
			return msg, err
		}
	}
	msg.Payload = payload.Elem().Interface()
	return msg, nil
}

type grpcServer struct {
	comm *GRPCCommunicator
}

func (s *grpcServer) reply(resp *communication.Response) (*wrapperspb.BytesValue, error) {
	body, err := json.Marshal(resp)
	if err != nil {
		return nil, communication.ErrMessageMarshalFailed
	}
	return wrapperspb.Bytes(body), nil
}

func (s *grpcServer) SendMessage(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	if s.comm.handler == nil {
		return nil, communication.ErrHandlerNotSet
	}

	var wire wireMessage
	if err := json.Unmarshal(in.GetValue(), &wire); err != nil {
		return s.reply(&communication.Response{
			Code: communication.CodeBadRequest,
			Body: []byte("malformed message: " + err.Error()),
		})
	}

	s.comm.ls.Debug(log_service.LogEvent{
		Message:  "Received GRPC message",
		Metadata: map[string]any{"from": wire.From, "type": wire.Type, "id": wire.ID},
	})

	msg, err := s.comm.decode(wire)
	if err != nil {
		s.comm.ls.Error(log_service.LogEvent{
			Message:  "Failed to unmarshal payload",
			Metadata: map[string]any{"from": wire.From, "type": wire.Type, "error": err.Error()},
		})
		return s.reply(&communication.Response{
			Code: communication.CodeBadRequest,
			Body: []byte("malformed payload: " + err.Error()),
		})
	}

	resp, err := s.comm.handler(ctx, msg)
	if err != nil {
		s.comm.ls.Error(log_service.LogEvent{
			Message:  "Message handler failed",
			Metadata: map[string]any{"type": wire.Type, "error": err.Error()},
		})
		return s.reply(&communication.Response{
			Code: communication.CodeInternal,
			Body: []byte(err.Error()),
		})
	}

	if resp == nil {
		return s.reply(&communication.Response{
			Code: communication.CodeInternal,
			Body: []byte("handler returned nil response"),
		})
	}
	return s.reply(resp)
}

var _ communication.Communicator = (*GRPCCommunicator)(nil)
