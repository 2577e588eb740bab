// Package zeroconf implements the connect pairing surface: an mDNS
// advertisement for _spotify-connect._tcp plus a small HTTP endpoint the
// phone app posts credentials to.
package zeroconf

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/hashicorp/mdns"
	"go.uber.org/zap"
)

// ErrEnded is returned by Next on every call after the server has closed.
var ErrEnded = errors.New("discovery session ended")

const serviceType = "_spotify-connect._tcp"

// Auth types carried in pairing credentials, matching the connect wire enum.
const (
	AuthTypeUserPass          = 0
	AuthTypeStoredCredentials = 1
	AuthTypeAccessToken       = 3
)

// Credentials is one successful pairing produced by the addUser endpoint.
// AuthData is carried opaquely; the session layer interprets it.
type Credentials struct {
	Username string
	AuthType int
	AuthData []byte
}

// Config describes one advertised device.
type Config struct {
	DeviceID   string
	DeviceName string
	DeviceType string
	ClientID   string

	// Listen is the TCP address for the pairing endpoint. Empty means an
	// ephemeral port on all interfaces.
	Listen string

	// DisableMDNS skips the multicast advertisement. The HTTP endpoint
	// still runs; used by tests and by hosts that advertise externally.
	DisableMDNS bool

	Log *zap.Logger
}

// Server advertises the device and streams pairings to Next.
type Server struct {
	cfg Config
	log *zap.Logger

	ln       net.Listener
	httpSrv  *http.Server
	announce *mdns.Server

	creds chan Credentials
	done  chan struct{}
	once  sync.Once
}

// New starts advertising and listening. Callers must Close the server.
func New(cfg Config) (*Server, error) {
	if cfg.DeviceID == "" {
		return nil, errors.New("zeroconf: device id is required")
	}
	if cfg.DeviceName == "" {
		return nil, errors.New("zeroconf: device name is required")
	}
	if cfg.DeviceType == "" {
		cfg.DeviceType = "SPEAKER"
	}
	if cfg.Listen == "" {
		cfg.Listen = ":0"
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("zeroconf listen: %w", err)
	}

	s := &Server{
		cfg:   cfg,
		log:   log,
		ln:    ln,
		creds: make(chan Credentials, 4),
		done:  make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	s.httpSrv = &http.Server{Handler: mux}
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("pairing endpoint stopped", zap.Error(err))
		}
	}()

	if !cfg.DisableMDNS {
		if err := s.startAnnounce(); err != nil {
			_ = s.httpSrv.Close()
			return nil, err
		}
	}

	log.Info("discovery started",
		zap.String("device_name", cfg.DeviceName),
		zap.Int("port", s.Port()),
	)
	return s, nil
}

func (s *Server) startAnnounce() error {
	txt := []string{"CPath=/", "VERSION=1.0", "Stack=SP"}
	svc, err := mdns.NewMDNSService(
		s.cfg.DeviceName, serviceType, "", "", s.Port(), nil, txt,
	)
	if err != nil {
		return fmt.Errorf("zeroconf announce: %w", err)
	}
	srv, err := mdns.NewServer(&mdns.Config{Zone: svc})
	if err != nil {
		return fmt.Errorf("zeroconf announce: %w", err)
	}
	s.announce = srv
	return nil
}

// Port returns the bound TCP port of the pairing endpoint.
func (s *Server) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Next blocks until a pairing arrives, the context ends, or the server
// closes. After Close it returns ErrEnded on every call.
func (s *Server) Next(ctx context.Context) (Credentials, error) {
	select {
	case c := <-s.creds:
		return c, nil
	case <-s.done:
		// Hand out pairings that arrived before the close.
		select {
		case c := <-s.creds:
			return c, nil
		default:
			return Credentials{}, ErrEnded
		}
	case <-ctx.Done():
		return Credentials{}, ctx.Err()
	}
}

// Close stops the advertisement and the endpoint. Idempotent.
func (s *Server) Close() error {
	s.once.Do(func() {
		close(s.done)
		if s.announce != nil {
			_ = s.announce.Shutdown()
		}
		_ = s.httpSrv.Close()
		s.log.Info("discovery stopped")
	})
	return nil
}

type getInfoResponse struct {
	Status           int    `json:"status"`
	StatusString     string `json:"statusString"`
	SpotifyError     int    `json:"spotifyError"`
	Version          string `json:"version"`
	DeviceID         string `json:"deviceID"`
	RemoteName       string `json:"remoteName"`
	DeviceType       string `json:"deviceType"`
	ActiveUser       string `json:"activeUser"`
	PublicKey        string `json:"publicKey"`
	ClientID         string `json:"clientID,omitempty"`
	LibraryVersion   string `json:"libraryVersion"`
	BrandDisplayName string `json:"brandDisplayName"`
	ModelDisplayName string `json:"modelDisplayName"`
}

type statusResponse struct {
	Status       int    `json:"status"`
	StatusString string `json:"statusString"`
	SpotifyError int    `json:"spotifyError"`
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	action := r.Form.Get("action")
	switch {
	case r.Method == http.MethodGet && action == "getInfo":
		s.handleGetInfo(w)
	case r.Method == http.MethodPost && action == "addUser":
		s.handleAddUser(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleGetInfo(w http.ResponseWriter) {
	writeJSON(w, getInfoResponse{
		Status:           101,
		StatusString:     "OK",
		Version:          "2.7.1",
		DeviceID:         s.cfg.DeviceID,
		RemoteName:       s.cfg.DeviceName,
		DeviceType:       strings.ToUpper(s.cfg.DeviceType),
		PublicKey:        "",
		ClientID:         s.cfg.ClientID,
		LibraryVersion:   "0.1.0",
		BrandDisplayName: "gospot",
		ModelDisplayName: "gospot",
	})
}

func (s *Server) handleAddUser(w http.ResponseWriter, r *http.Request) {
	username := r.Form.Get("userName")
	blob := r.Form.Get("blob")
	if username == "" || blob == "" {
		http.Error(w, "userName and blob are required", http.StatusBadRequest)
		return
	}
	data, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		http.Error(w, "blob is not valid base64", http.StatusBadRequest)
		return
	}

	creds := Credentials{
		Username: username,
		AuthType: AuthTypeStoredCredentials,
		AuthData: data,
	}
	select {
	case s.creds <- creds:
		s.log.Info("pairing accepted", zap.String("username", username))
	case <-s.done:
		http.Error(w, "discovery closed", http.StatusServiceUnavailable)
		return
	default:
		// Stream full and nobody consuming; refuse rather than block
		// the phone's request.
		http.Error(w, "pairing backlog full", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, statusResponse{Status: 101, StatusString: "OK"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
