package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	wsReadLimit     = 1 << 20
	wsReadDeadline  = 60 * time.Second
	wsWriteDeadline = 10 * time.Second
)

// wsRequest is one operation frame from a host. ID is echoed back so
// the host can correlate concurrent requests.
type wsRequest struct {
	ID     string          `json:"id"`
	Op     string          `json:"op"`
	Params json.RawMessage `json:"params,omitempty"`
}

// wsResponse answers exactly one wsRequest.
type wsResponse struct {
	ID     string `json:"id"`
	OK     bool   `json:"ok"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// handleWebSocket runs a request/response loop over one connection.
// Each frame carries an op name and JSON params; responses are sent in
// completion order, matched by id.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[SERVER] WebSocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[SERVER] WebSocket client connected: %s", r.RemoteAddr)

	conn.SetReadLimit(wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		return nil
	})

	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[SERVER] WebSocket read: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsReadDeadline))

		resp := s.dispatch(r.Context(), req)
		conn.SetWriteDeadline(time.Now().Add(wsWriteDeadline))
		if err := conn.WriteJSON(resp); err != nil {
			log.Printf("[SERVER] WebSocket write: %v", err)
			return
		}
	}
}

// dispatch routes one frame to the manager.
func (s *Server) dispatch(ctx context.Context, req wsRequest) wsResponse {
	fail := func(msg string) wsResponse {
		return wsResponse{ID: req.ID, Error: msg}
	}

	switch req.Op {
	case "extractAndStore":
		var params struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return fail("invalid params: " + err.Error())
		}
		rec, created, err := s.manager.ExtractAndStore(ctx, params.Text)
		if err != nil {
			return fail(err.Error())
		}
		return wsResponse{ID: req.ID, OK: true, Result: map[string]any{
			"record":  toRecordResponse(rec),
			"created": created,
		}}

	case "search":
		var params struct {
			Query    string  `json:"query"`
			TopK     int     `json:"top_k"`
			MinScore float64 `json:"min_score"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return fail("invalid params: " + err.Error())
		}
		matches, err := s.manager.Search(ctx, params.Query, params.TopK, params.MinScore)
		if err != nil {
			return fail(err.Error())
		}
		return wsResponse{ID: req.ID, OK: true, Result: toMatchResponses(matches)}

	case "clusterAll":
		result, err := s.manager.ClusterAll(ctx)
		if err != nil {
			return fail(err.Error())
		}
		return wsResponse{ID: req.ID, OK: true, Result: result}

	case "deleteMemory":
		var params struct {
			Key string `json:"key"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return fail("invalid params: " + err.Error())
		}
		removed, err := s.manager.Delete(ctx, params.Key)
		if err != nil {
			return fail(err.Error())
		}
		return wsResponse{ID: req.ID, OK: true, Result: map[string]bool{"removed": removed}}

	case "listAll":
		records, err := s.manager.List(ctx)
		if err != nil {
			return fail(err.Error())
		}
		out := make([]recordResponse, 0, len(records))
		for _, rec := range records {
			out = append(out, toRecordResponse(rec))
		}
		return wsResponse{ID: req.ID, OK: true, Result: out}

	case "clearAll":
		if err := s.manager.Clear(ctx); err != nil {
			return fail(err.Error())
		}
		return wsResponse{ID: req.ID, OK: true}

	default:
		return fail("unknown op: " + req.Op)
	}
}
