// Package rpc binds RequestHandler to the fixed A2A JSON-RPC method
// table over HTTP, including SSE framing for the two streaming methods.
// It is grounded on the teacher's server/transport/handle-a2a-POST.go
// envelope parsing and SSE loop, generalized from the teacher's
// session/input-queue indirection to direct synchronous calls into
// handler.RequestHandler (this library has no notion of a session).
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gate4ai/a2a"
	"github.com/gate4ai/a2a/handler"
	"github.com/gate4ai/a2a/queue"
	"go.uber.org/zap"
)

// Server is an http.Handler exposing the three endpoints of §6:
// POST /, GET /.well-known/agent.json, GET /agent/authenticatedExtendedCard.
type Server struct {
	handler      *handler.RequestHandler
	card         a2a.AgentCard
	extendedCard *a2a.AgentCard
	logger       *zap.Logger
}

// NewServer returns a Server. extendedCard may be nil; the extended
// card endpoint then always answers 404, per §6.
func NewServer(h *handler.RequestHandler, card a2a.AgentCard, extendedCard *a2a.AgentCard, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{handler: h, card: card, extendedCard: extendedCard, logger: logger}
}

// Routes returns the handler's route table.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRPC)
	mux.HandleFunc("/.well-known/agent.json", s.handleAgentCard)
	mux.HandleFunc("/agent/authenticatedExtendedCard", s.handleExtendedCard)
	return mux
}

func (s *Server) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.card)
}

func (s *Server) handleExtendedCard(w http.ResponseWriter, r *http.Request) {
	if s.extendedCard == nil || !s.card.SupportsAuthenticatedExtendedCard {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "authenticated extended card not configured"})
		return
	}
	writeJSON(w, http.StatusOK, s.extendedCard)
}

// decodeRequest parses body as a JSON-RPC 2.0 envelope. It never
// panics on arbitrary input: malformed JSON is a ParseError, and JSON
// missing jsonrpc="2.0" or method is an InvalidRequest.
func decodeRequest(body []byte) (a2a.Request, *a2a.RPCError) {
	var req a2a.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return a2a.Request{}, a2a.NewParseError()
	}
	if req.JSONRPC != a2a.Version || req.Method == "" {
		return req, a2a.NewInvalidRequest("request must set jsonrpc=\"2.0\" and method")
	}
	return req, nil
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, nil, a2a.NewParseError())
		return
	}
	defer r.Body.Close()

	req, rpcErr := decodeRequest(body)
	if rpcErr != nil {
		s.logger.Debug("rejecting malformed json-rpc envelope", zap.Error(rpcErr))
		writeError(w, req.ID, rpcErr)
		return
	}

	wantsStream := strings.Contains(strings.ToLower(r.Header.Get("Accept")), "text/event-stream")

	switch req.Method {
	case "message/send":
		s.dispatch(w, r, req, func(ctx context.Context) (any, error) {
			var params a2a.MessageSendParams
			if err := unmarshalParams(req.Params, &params); err != nil {
				return nil, err
			}
			return s.handler.OnMessageSend(ctx, params)
		})

	case "message/stream":
		if !wantsStream {
			writeError(w, req.ID, a2a.NewInvalidRequest("message/stream requires Accept: text/event-stream"))
			return
		}
		var params a2a.MessageSendParams
		if err := unmarshalParams(req.Params, &params); err != nil {
			writeError(w, req.ID, err.(*a2a.RPCError))
			return
		}
		consumer, err := s.handler.OnMessageSendStream(r.Context(), params)
		if err != nil {
			writeError(w, req.ID, toRPCError(err))
			return
		}
		s.streamSSE(w, r, req.ID, consumer)

	case "tasks/get":
		s.dispatch(w, r, req, func(ctx context.Context) (any, error) {
			var params a2a.TaskQueryParams
			if err := unmarshalParams(req.Params, &params); err != nil {
				return nil, err
			}
			return s.handler.OnGetTask(ctx, params)
		})

	case "tasks/cancel":
		s.dispatch(w, r, req, func(ctx context.Context) (any, error) {
			var params a2a.TaskIDParams
			if err := unmarshalParams(req.Params, &params); err != nil {
				return nil, err
			}
			return s.handler.OnCancelTask(ctx, params)
		})

	case "tasks/resubscribe":
		if !wantsStream {
			writeError(w, req.ID, a2a.NewInvalidRequest("tasks/resubscribe requires Accept: text/event-stream"))
			return
		}
		var params a2a.TaskIDParams
		if err := unmarshalParams(req.Params, &params); err != nil {
			writeError(w, req.ID, err.(*a2a.RPCError))
			return
		}
		consumer, err := s.handler.OnResubscribeToTask(r.Context(), params)
		if err != nil {
			writeError(w, req.ID, toRPCError(err))
			return
		}
		s.streamSSE(w, r, req.ID, consumer)

	case "tasks/pushNotificationConfig/set":
		s.dispatch(w, r, req, func(ctx context.Context) (any, error) {
			var params a2a.TaskPushNotificationConfig
			if err := unmarshalParams(req.Params, &params); err != nil {
				return nil, err
			}
			return s.handler.OnSetPushNotificationConfig(ctx, params)
		})

	case "tasks/pushNotificationConfig/get":
		s.dispatch(w, r, req, func(ctx context.Context) (any, error) {
			var params a2a.TaskIDParams
			if err := unmarshalParams(req.Params, &params); err != nil {
				return nil, err
			}
			return s.handler.OnGetPushNotificationConfig(ctx, params)
		})

	case "tasks/pushNotificationConfig/list":
		s.dispatch(w, r, req, func(ctx context.Context) (any, error) {
			var params a2a.TaskIDParams
			if err := unmarshalParams(req.Params, &params); err != nil {
				return nil, err
			}
			return s.handler.OnListPushNotificationConfig(ctx, params)
		})

	case "tasks/pushNotificationConfig/delete":
		s.dispatch(w, r, req, func(ctx context.Context) (any, error) {
			var params a2a.TaskIDParams
			if err := unmarshalParams(req.Params, &params); err != nil {
				return nil, err
			}
			return struct{}{}, s.handler.OnDeletePushNotificationConfig(ctx, params)
		})

	default:
		writeError(w, req.ID, a2a.NewMethodNotFound(req.Method))
	}
}

// dispatch runs fn against the request context and writes either a
// result or error envelope, sharing req.ID verbatim either way.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req a2a.Request, fn func(context.Context) (any, error)) {
	result, err := fn(r.Context())
	if err != nil {
		writeError(w, req.ID, toRPCError(err))
		return
	}
	writeResult(w, req.ID, result)
}

func unmarshalParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return a2a.NewInvalidParams("missing params")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return a2a.NewInvalidParams(err.Error())
	}
	return nil
}

func toRPCError(err error) *a2a.RPCError {
	var rpcErr *a2a.RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return a2a.NewInternalError(err)
}

func (s *Server) streamSSE(w http.ResponseWriter, r *http.Request, id json.RawMessage, consumer *queue.Consumer) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, id, a2a.NewInternalError(errors.New("response writer does not support streaming")))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		ev, ok, err := consumer.Recv(r.Context())
		if err != nil {
			writeSSEFrame(w, flusher, id, nil, a2a.NewInternalError(err))
			return
		}
		if !ok {
			return
		}
		writeSSEFrame(w, flusher, id, ev, nil)
	}
}

func writeSSEFrame(w http.ResponseWriter, flusher http.Flusher, id json.RawMessage, ev a2a.Event, rpcErr *a2a.RPCError) {
	resp := a2a.Response{JSONRPC: a2a.Version, ID: id}
	if rpcErr != nil {
		resp.Error = rpcErr
	} else {
		raw, err := json.Marshal(ev)
		if err != nil {
			resp.Error = a2a.NewInternalError(err)
		} else {
			resp.Result = raw
		}
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	w.Write([]byte("data: "))
	w.Write(data)
	w.Write([]byte("\n\n"))
	flusher.Flush()
}

func writeResult(w http.ResponseWriter, id json.RawMessage, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		writeError(w, id, a2a.NewInternalError(err))
		return
	}
	writeJSON(w, http.StatusOK, a2a.Response{JSONRPC: a2a.Version, ID: id, Result: raw})
}

func writeError(w http.ResponseWriter, id json.RawMessage, rpcErr *a2a.RPCError) {
	writeJSON(w, http.StatusOK, a2a.Response{JSONRPC: a2a.Version, ID: id, Error: rpcErr})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
