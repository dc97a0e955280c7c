package communication

import (
	"context"
	"encoding/json"
)

// Message is a request travelling between a client and a server. Payload
// holds a typed request struct on the receiving side once the communicator
// has decoded it.
type Message struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type Code string

const (
	CodeOK               Code = "OK"
	CodeNotFound         Code = "NOT_FOUND"
	CodeAlreadyExists    Code = "ALREADY_EXISTS"
	CodePermissionDenied Code = "PERMISSION_DENIED"
	CodeNotEmpty         Code = "NOT_EMPTY"
	CodeNoSpace          Code = "NO_SPACE"
	CodeInvalid          Code = "INVALID"
	CodeBadRequest       Code = "BAD_REQUEST"
	CodeInternal         Code = "INTERNAL"
)

type Response struct {
	Code    Code              `json:"code"`
	Body    []byte            `json:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Decode unmarshals a JSON body into out.
func (r *Response) Decode(out any) error {
	if len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return ErrPayloadUnmarshalFailed
	}
	return nil
}

type MessageHandler func(ctx context.Context, msg Message) (*Response, error)

type Communicator interface {
	Start(handler MessageHandler) error
	Stop() error
	Send(ctx context.Context, to string, msg Message) (*Response, error)
	Address() string
}
