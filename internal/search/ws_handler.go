package search

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/ricesearch/rice-search/internal/pkg/logger"
)

// wsUpgrader upgrades HTTP connections to WebSocket. Origin checking is
// left to a reverse proxy in front of this service, matching the HTTP
// handlers' lack of auth middleware.
var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSHandler serves search requests over a long-lived WebSocket connection
// instead of one HTTP round trip per query.
type WSHandler struct {
	svc *Service
	log *logger.Logger
}

// NewWSHandler creates a WebSocket handler bound to svc.
func NewWSHandler(svc *Service, log *logger.Logger) *WSHandler {
	return &WSHandler{svc: svc, log: log}
}

// wsMessage is the envelope for every inbound frame. Only "search" is
// currently handled; unknown types get an error response echoing req_id.
type wsMessage struct {
	Type    string        `json:"type"`
	ReqID   string        `json:"req_id"`
	Request SearchRequest `json:"request"`
}

// wsResponse is the envelope for every outbound frame.
type wsResponse struct {
	Type     string    `json:"type"`
	ReqID    string    `json:"req_id"`
	Response *Response `json:"response,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// HandleWS upgrades the connection and serves search requests until the
// client disconnects. Each frame is handled synchronously and in the
// order received; a client wanting concurrent in-flight searches should
// open multiple connections.
func (h *WSHandler) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("WebSocket read failed", "error", err)
			}
			return
		}

		if msg.Type != "search" {
			h.writeError(conn, msg.ReqID, "unknown message type: "+msg.Type)
			continue
		}

		h.handleSearch(r, conn, msg)
	}
}

func (h *WSHandler) handleSearch(r *http.Request, conn *websocket.Conn, msg wsMessage) {
	req := msg.Request
	if req.Store == "" {
		h.writeError(conn, msg.ReqID, "store is required")
		return
	}
	if req.Query == "" {
		h.writeError(conn, msg.ReqID, "query is required")
		return
	}

	searchReq := Request{
		Query:           req.Query,
		Store:           req.Store,
		TopK:            req.TopK,
		Filter:          req.Filter,
		EnableReranking: req.EnableReranking,
		RerankTopK:      req.RerankTopK,
		IncludeContent:  req.IncludeContent,
		SparseWeight:    req.SparseWeight,
		DenseWeight:     req.DenseWeight,
	}

	resp, err := h.svc.Search(r.Context(), searchReq)
	if err != nil {
		h.writeError(conn, msg.ReqID, err.Error())
		return
	}

	if req.GroupByFile {
		maxPerFile := req.MaxPerFile
		if maxPerFile <= 0 {
			maxPerFile = 3
		}
		resp.Results = GroupByFile(resp.Results, maxPerFile)
	}

	if err := conn.WriteJSON(wsResponse{Type: "result", ReqID: msg.ReqID, Response: resp}); err != nil {
		h.log.Debug("WebSocket write failed", "error", err)
	}
}

func (h *WSHandler) writeError(conn *websocket.Conn, reqID, message string) {
	if err := conn.WriteJSON(wsResponse{Type: "error", ReqID: reqID, Error: message}); err != nil {
		h.log.Debug("WebSocket write failed", "error", err)
	}
}
