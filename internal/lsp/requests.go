package lsp

import (
	"bytes"
	"context"
	"encoding/json"
)

// requestHandler answers one request. ctx ends when the client cancels the
// request or the server stops.
type requestHandler func(ctx context.Context, msg *rpcMessage) error

type inflightRequest struct {
	cancel context.CancelFunc
}

// startRequest runs handle on its own goroutine. Queries wait for the build
// barrier, and the reader must keep serving edits, cancellations and
// shutdown meanwhile.
func (s *Server) startRequest(msg *rpcMessage, handle requestHandler) {
	if len(msg.ID) == 0 {
		return
	}
	key := requestKey(msg.ID)
	ctx, cancel := context.WithCancel(s.ctx)
	req := &inflightRequest{cancel: cancel}
	s.reqMu.Lock()
	s.inflight[key] = req
	s.reqMu.Unlock()

	s.requests.Add(1)
	go func() {
		defer s.requests.Done()
		defer s.endRequest(key, req)
		if err := handle(ctx, msg); err != nil {
			s.logf("%s failed: %v", msg.Method, err)
		}
	}()
}

func (s *Server) endRequest(key string, req *inflightRequest) {
	s.reqMu.Lock()
	if s.inflight[key] == req {
		delete(s.inflight, key)
	}
	s.reqMu.Unlock()
	req.cancel()
}

// handleCancelRequest cancels an in-flight request. Unknown or finished ids
// are ignored.
func (s *Server) handleCancelRequest(msg *rpcMessage) error {
	var params cancelParams
	if err := json.Unmarshal(msg.Params, &params); err != nil || len(params.ID) == 0 {
		return nil
	}
	s.reqMu.Lock()
	req, ok := s.inflight[requestKey(params.ID)]
	s.reqMu.Unlock()
	if ok {
		req.cancel()
	}
	return nil
}

func requestKey(id json.RawMessage) string {
	return string(bytes.TrimSpace(id))
}
