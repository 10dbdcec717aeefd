// Package transport implements the signaling endpoint and pion/webrtc
// wiring (spec.md §6 "Signaling endpoint", listed as outside the core
// pipeline but retained here as the one place that produces the core's
// inputs). Grounded on this pack's richinsley-bunghole
// internal/server/server.go handleWHEPOffer (single-shot offer -> answer,
// full ICE gathering before responding, no trickle) and
// n0remac-robot-webrtc's webrtc/sfu.go newSFUAPI (explicit H264 + Opus
// codec registration instead of the full default codec table).
package transport

import (
	"encoding/json"
	"net/http"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/n0remac/wound-gateway/internal/orchestrator"
	"github.com/n0remac/wound-gateway/internal/registry"
)

// offerRequest is the wire shape of spec.md §6's /offer request body.
type offerRequest struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

type answerResponse struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

// Server exposes the signaling HTTP routes.
type Server struct {
	api    *webrtc.API
	reg    *registry.Registry
	orch   *orchestrator.Orchestrator
	log    zerolog.Logger
}

// New builds a Server bound to reg (for the concurrent-session cap) and
// orch (which owns per-session pipeline wiring).
func New(reg *registry.Registry, orch *orchestrator.Orchestrator, logger zerolog.Logger) *Server {
	return &Server{api: newAPI(), reg: reg, orch: orch, log: logger}
}

// newAPI builds a pion API restricted to H264 video and Opus audio, the
// only two codecs this gateway's preprocess/acoustic pipeline supports.
func newAPI() *webrtc.API {
	m := &webrtc.MediaEngine{}
	_ = m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:     webrtc.MimeTypeH264,
			ClockRate:    90000,
			SDPFmtpLine:  "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f",
			RTCPFeedback: []webrtc.RTCPFeedback{{Type: "nack"}, {Type: "nack", Parameter: "pli"}},
		},
		PayloadType: 96,
	}, webrtc.RTPCodecTypeVideo)
	_ = m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeOpus,
			ClockRate: 48000,
			Channels:  2,
		},
		PayloadType: 111,
	}, webrtc.RTPCodecTypeAudio)

	return webrtc.NewAPI(webrtc.WithMediaEngine(m))
}

// iceServers is a single public STUN server, matching this pack's only
// other signaling server (richinsley-bunghole ships none; sfu.go ships a
// single public STUN entry — kept here so browsers behind NAT can gather
// server-reflexive candidates).
var iceServers = []webrtc.ICEServer{
	{URLs: []string{"stun:stun.l.google.com:19302"}},
}

// HandleOffer implements POST /offer.
func (s *Server) HandleOffer(w http.ResponseWriter, r *http.Request) {
	var req offerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SDP == "" {
		http.Error(w, "malformed offer", http.StatusBadRequest)
		return
	}

	pc, err := s.api.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
	if err != nil {
		s.log.Error().Err(err).Msg("create peer connection")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	admitted, closeFn := s.orch.Admit(pc, s.reg)
	if !admitted {
		pc.Close()
		http.Error(w, "at capacity", http.StatusServiceUnavailable)
		return
	}
	defer func() {
		if err != nil {
			closeFn()
		}
	}()

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: req.SDP}
	if err = pc.SetRemoteDescription(offer); err != nil {
		http.Error(w, "bad SDP offer", http.StatusBadRequest)
		return
	}

	answer, aerr := pc.CreateAnswer(nil)
	if aerr != nil {
		err = aerr
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err = pc.SetLocalDescription(answer); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	<-webrtc.GatheringCompletePromise(pc)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(answerResponse{
		SDP:  pc.LocalDescription().SDP,
		Type: pc.LocalDescription().Type.String(),
	})
}

// HandleHealth and HandleReady are liveness/readiness stubs — supplements
// outside spec.md's core scope, in the ambient style every example repo's
// HTTP server carries (richinsley-bunghole and LanternOps-breeze both
// expose unauthenticated status routes).
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) HandleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

// Mux builds the process's HTTP route table.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /offer", s.HandleOffer)
	mux.HandleFunc("GET /health", s.HandleHealth)
	mux.HandleFunc("GET /ready", s.HandleReady)
	return mux
}
