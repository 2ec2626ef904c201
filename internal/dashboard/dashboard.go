package dashboard

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"runtime"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Mavwarf/metronome/internal/click"
	"github.com/Mavwarf/metronome/internal/control"
	"github.com/Mavwarf/metronome/internal/metronome"
	"github.com/Mavwarf/metronome/internal/sessionlog"
)

//go:embed static/index.html
var staticFS embed.FS

// keepAlive is how often an idle tick stream gets a comment line so
// proxies and the WebView keep the connection open.
const keepAlive = 15 * time.Second

// JSON response types used by API handlers.

type voiceInfo struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Accent      float64 `json:"accent_hz"`
	Beat        float64 `json:"beat_hz"`
	Selected    bool    `json:"selected"`
}

type historyResponse struct {
	Events   []sessionlog.Event   `json:"events"`
	Sessions []sessionlog.Session `json:"sessions"`
	Summary  sessionlog.Summary   `json:"summary"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server exposes a Controller over HTTP.
type Server struct {
	ctrl     *control.Controller
	store    sessionlog.Store
	defaults metronome.Settings
	log      logrus.FieldLogger

	// ShowFn, when set, is called by POST /api/show to raise the desktop
	// window.
	ShowFn func()
}

// New returns a dashboard for ctrl. defaults seed a start request that
// leaves fields out while the metronome is idle.
func New(ctrl *control.Controller, store sessionlog.Store, defaults metronome.Settings, log logrus.FieldLogger) *Server {
	if store == nil {
		store = sessionlog.Nop{}
	}
	return &Server{ctrl: ctrl, store: store, defaults: defaults, log: log}
}

// Handler returns the dashboard routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", handleIndex)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/start", s.handleStart)
	mux.HandleFunc("/api/stop", s.handleStop)
	mux.HandleFunc("/api/update", s.handleUpdate)
	mux.HandleFunc("/api/ticks", s.handleTicks)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/voices", s.handleVoices)
	mux.HandleFunc("/api/show", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if s.ShowFn == nil {
			http.NotFound(w, r)
			return
		}
		s.ShowFn()
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

// Serve starts the dashboard HTTP server on 127.0.0.1:port and blocks
// until ctx is done. If open is true, a browser window is launched in
// app mode (chromeless) pointing at the dashboard URL.
func (s *Server) Serve(ctx context.Context, port int, open bool) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	url := URL(port)
	s.log.WithField("url", url).Info("dashboard listening")

	if open {
		go openBrowser(url)
	}

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// URL returns the dashboard address for port.
func URL(port int) string {
	return fmt.Sprintf("http://127.0.0.1:%d", port)
}

// openBrowser tries to open the URL in a chromeless browser window (app mode).
// It tries Edge, then Chrome, then falls back to the OS default browser.
func openBrowser(url string) {
	// Browsers that support --app mode (chromeless window).
	appBrowsers := [][]string{
		{"msedge", "--app=" + url},
		{"chrome", "--app=" + url},
		{"google-chrome", "--app=" + url},
		{"chromium", "--app=" + url},
		{"chromium-browser", "--app=" + url},
	}

	for _, b := range appBrowsers {
		if path, err := exec.LookPath(b[0]); err == nil {
			cmd := exec.Command(path, b[1:]...)
			if cmd.Start() == nil {
				return
			}
		}
	}

	// Fallback: open in default browser (with address bar).
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	cmd.Start()
}

func handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	data, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, metronome.ErrInvalidSettings):
		code = http.StatusBadRequest
	case errors.Is(err, control.ErrNotRunning):
		code = http.StatusConflict
	}
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

// decodeChange reads an optional JSON body. An empty body is an empty
// change.
func decodeChange(r *http.Request) (control.Change, error) {
	var ch control.Change
	if r.Body == nil {
		return ch, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&ch); err != nil && !errors.Is(err, io.EOF) {
		return ch, fmt.Errorf("%w: %v", metronome.ErrInvalidSettings, err)
	}
	return ch, nil
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ch, err := decodeChange(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.ctrl.StartChange(ch, s.defaults); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.ctrl.Stop()
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ch, err := decodeChange(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.ctrl.UpdateChange(ch); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

// handleTicks streams beats as server-sent events until the client goes
// away.
func (s *Server) handleTicks(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	l := s.ctrl.Subscribe()
	defer s.ctrl.Unsubscribe(l)

	// Flush headers immediately so the browser fires onopen.
	flusher.Flush()

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case t := <-l.C:
			data, err := json.Marshal(t)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: tick\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	days := 7
	if d := r.URL.Query().Get("days"); d != "" {
		if v, err := strconv.Atoi(d); err == nil && v >= 0 {
			days = v
		}
	}
	events, err := s.store.Events(days)
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []sessionlog.Event{}
	}
	sessions := sessionlog.Sessions(events, time.Now())
	if sessions == nil {
		sessions = []sessionlog.Session{}
	}
	writeJSON(w, http.StatusOK, historyResponse{
		Events:   events,
		Sessions: sessions,
		Summary:  sessionlog.Summarize(sessions),
	})
}

// handleVoices lists voices on GET and selects one on POST {"name": ...}.
func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		v, err := click.Lookup(req.Name)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		s.ctrl.SetVoice(v)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	selected := s.ctrl.Voice().Name
	out := make([]voiceInfo, 0, len(click.Voices))
	for _, name := range click.Names() {
		v := click.Voices[name]
		out = append(out, voiceInfo{
			Name:        v.Name,
			Description: v.Description,
			Accent:      v.Accent,
			Beat:        v.Beat,
			Selected:    v.Name == selected,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
