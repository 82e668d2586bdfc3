// Package httpapi exposes the engine over JSON endpoints. It is a thin
// translation layer: every handler converts failures into an {"error": ...}
// body and nothing here is allowed to crash the process.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/viczommers/QueueChain/internal/bidding"
	"github.com/viczommers/QueueChain/internal/keyring"
	"github.com/viczommers/QueueChain/internal/queueview"
)

// BidSubmitter places a bid and waits for its confirmation.
type BidSubmitter interface {
	SubmitBid(ctx context.Context, url string, value *big.Int) (*bidding.Confirmation, error)
}

// QueueReader serves queue summaries.
type QueueReader interface {
	Metadata(ctx context.Context) (*queueview.Metadata, error)
	CurrentURL(ctx context.Context) (string, error)
}

// ConnectionProber reports RPC liveness.
type ConnectionProber interface {
	Connected(ctx context.Context) bool
}

type Server struct {
	keys   *keyring.Manager
	bids   BidSubmitter
	queue  QueueReader
	prober ConnectionProber
	log    zerolog.Logger
}

func NewServer(keys *keyring.Manager, bids BidSubmitter, queue QueueReader, prober ConnectionProber, log zerolog.Logger) *Server {
	return &Server{
		keys:   keys,
		bids:   bids,
		queue:  queue,
		prober: prober,
		log:    log,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /account-info", s.handleAccountInfo)
	mux.HandleFunc("GET /current-url", s.handleCurrentURL)
	mux.HandleFunc("GET /queue-metadata", s.handleQueueMetadata)
	mux.HandleFunc("POST /submit-bid", s.handleSubmitBid)
	mux.HandleFunc("POST /update-private-key", s.handleUpdatePrivateKey)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())
	return s.logRequests(mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := uuid.NewString()
		next.ServeHTTP(w, r)
		s.log.Debug().
			Str("request_id", reqID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request served")
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

type accountInfoResponse struct {
	Address       *string `json:"address"`
	HasPrivateKey bool    `json:"has_private_key"`
}

type currentURLResponse struct {
	URL *string `json:"url"`
}

type bidRequest struct {
	URL   string      `json:"url"`
	Value json.Number `json:"value"`
}

type bidResponse struct {
	Success     bool   `json:"success"`
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
}

type keyUpdateRequest struct {
	PrivateKey string `json:"private_key"`
}

type keyUpdateResponse struct {
	Success bool   `json:"success"`
	Address string `json:"address"`
}

func (s *Server) handleAccountInfo(w http.ResponseWriter, r *http.Request) {
	info := s.keys.Info()
	resp := accountInfoResponse{HasPrivateKey: info.HasPrivateKey}
	if info.HasPrivateKey {
		resp.Address = &info.Address
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCurrentURL(w http.ResponseWriter, r *http.Request) {
	if !s.prober.Connected(r.Context()) {
		writeJSON(w, http.StatusOK, errorResponse{Error: "Blockchain connection failed"})
		return
	}
	url, err := s.queue.CurrentURL(r.Context())
	if err != nil {
		writeJSON(w, http.StatusOK, errorResponse{Error: err.Error()})
		return
	}
	resp := currentURLResponse{}
	if url != "" {
		resp.URL = &url
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQueueMetadata(w http.ResponseWriter, r *http.Request) {
	if !s.prober.Connected(r.Context()) {
		writeJSON(w, http.StatusOK, errorResponse{Error: "Blockchain connection failed"})
		return
	}
	md, err := s.queue.Metadata(r.Context())
	if err != nil {
		writeJSON(w, http.StatusOK, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, md)
}

func (s *Server) handleSubmitBid(w http.ResponseWriter, r *http.Request) {
	var req bidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	value := new(big.Int)
	if req.Value != "" {
		if _, ok := value.SetString(req.Value.String(), 10); !ok {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "value must be an integer"})
			return
		}
	}

	conf, err := s.bids.SubmitBid(r.Context(), req.URL, value)
	if err != nil {
		if errors.Is(err, keyring.ErrNoAccount) {
			writeJSON(w, http.StatusOK, errorResponse{Error: "No account available - please enter private key first"})
			return
		}
		writeJSON(w, http.StatusOK, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, bidResponse{
		Success:     true,
		TxHash:      conf.TxHash.Hex(),
		BlockNumber: conf.BlockNumber,
	})
}

func (s *Server) handleUpdatePrivateKey(w http.ResponseWriter, r *http.Request) {
	var req keyUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if err := s.keys.SetCredential(req.PrivateKey); err != nil {
		writeJSON(w, http.StatusOK, errorResponse{Error: err.Error()})
		return
	}
	account, err := s.keys.Account()
	if err != nil {
		writeJSON(w, http.StatusOK, errorResponse{Error: err.Error()})
		return
	}
	s.log.Info().Str("address", account.Address.Hex()).Msg("signing account updated")
	writeJSON(w, http.StatusOK, keyUpdateResponse{Success: true, Address: account.Address.Hex()})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"connected": s.prober.Connected(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
