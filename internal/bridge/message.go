package bridge

import (
	"encoding/json"
	"fmt"
)

// MessageType is the closed set of frame kinds exchanged with the host.
type MessageType string

const (
	TypeInitEventData        MessageType = "INIT_EVENT_DATA"
	TypeRequestInit          MessageType = "REQUEST_INIT"
	TypeStartCheckout        MessageType = "START_CHECKOUT"
	TypeCheckPaymentStatus   MessageType = "CHECK_PAYMENT_STATUS"
	TypeCancelPendingPayment MessageType = "CANCEL_PENDING_PAYMENT"
	TypeSendPendingWhatsapp  MessageType = "SEND_PENDING_WHATSAPP"
	TypePaymentSuccess       MessageType = "PAYMENT_SUCCESS"
	TypePaymentCancelled     MessageType = "PAYMENT_CANCELLED"
	TypePaymentError         MessageType = "PAYMENT_ERROR"
	TypePaymentProcessing    MessageType = "PAYMENT_PROCESSING"
	TypePaymentStatus        MessageType = "PAYMENT_STATUS"
)

var knownTypes = map[MessageType]struct{}{
	TypeInitEventData:        {},
	TypeRequestInit:          {},
	TypeStartCheckout:        {},
	TypeCheckPaymentStatus:   {},
	TypeCancelPendingPayment: {},
	TypeSendPendingWhatsapp:  {},
	TypePaymentSuccess:       {},
	TypePaymentCancelled:     {},
	TypePaymentError:         {},
	TypePaymentProcessing:    {},
	TypePaymentStatus:        {},
}

func (t MessageType) Known() bool {
	_, ok := knownTypes[t]
	return ok
}

func (t MessageType) String() string { return string(t) }

// Envelope is the wire frame. The host may put the body under either
// "data" or "payload".
type Envelope struct {
	Type      MessageType     `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Success   *bool           `json:"success,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Body returns data, falling back to payload.
func (e Envelope) Body() json.RawMessage {
	if len(e.Data) > 0 && string(e.Data) != "null" {
		return e.Data
	}
	return e.Payload
}

// Failed reports an explicit success=false.
func (e Envelope) Failed() bool {
	return e.Success != nil && !*e.Success
}

// Decode parses a frame. A frame whose type is outside the known set is
// returned alongside ErrUnknownMessageType so the caller can still see its
// request id.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if env.Type == "" {
		return env, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}
	if !env.Type.Known() {
		return env, fmt.Errorf("%w: %q", ErrUnknownMessageType, env.Type)
	}
	return env, nil
}

// Encode builds an outbound frame with the body under "payload".
func Encode(t MessageType, requestID string, payload any) ([]byte, error) {
	env := Envelope{Type: t, RequestID: requestID}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("bridge: encode %s payload: %w", t, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// EncodeReply builds a host -> app frame with the body under "data".
func EncodeReply(t MessageType, requestID string, success bool, data any, errMsg string) ([]byte, error) {
	env := Envelope{Type: t, RequestID: requestID, Success: &success, Error: errMsg}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("bridge: encode %s data: %w", t, err)
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

// DecodeBody unmarshals the envelope body into T. An empty body yields the
// zero value.
func DecodeBody[T any](env Envelope) (T, error) {
	var v T
	body := env.Body()
	if len(body) == 0 || string(body) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return v, fmt.Errorf("bridge: decode %s body: %w", env.Type, err)
	}
	return v, nil
}
