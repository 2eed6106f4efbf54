package handlers

import (
	"io/fs"
	"net/http"

	"github.com/MegaGrindStone/sakhi"
	"github.com/MegaGrindStone/sakhi/internal/metrics"
	"github.com/gorilla/mux"
)

// Router returns the HTTP handler serving every route of the app, static files, health and metrics.
func (m Main) Router() (http.Handler, error) {
	staticFS, err := fs.Sub(sakhi.StaticFS, "static")
	if err != nil {
		return nil, err
	}

	r := mux.NewRouter()
	r.Use(Recover(m.logger), LogRequests(m.logger))

	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	r.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	route := func(path string, h http.HandlerFunc, methods ...string) {
		r.Handle(path, metrics.Instrument(path, h)).Methods(methods...)
	}

	route("/", m.HandleWelcome, http.MethodGet)
	route("/join", m.HandleJoin, http.MethodGet, http.MethodPost)
	route("/home", m.HandleHome, http.MethodGet)
	route("/mood", m.HandleMood, http.MethodPost)

	route("/chat", m.HandleChat, http.MethodGet)
	route("/chat/messages", m.HandleMessages, http.MethodPost)
	r.HandleFunc("/sse/chat", m.HandleSSE).Methods(http.MethodGet)

	route("/voice/toggle", m.HandleVoiceToggle, http.MethodPost)
	route("/voice/recognition", m.HandleVoiceRecognition, http.MethodPost)
	route("/voice/permission", m.HandleVoicePermission, http.MethodPost)
	route("/voice/audio", m.HandleVoiceAudio, http.MethodPost)

	route("/learn", m.HandleLearn, http.MethodGet)
	route("/learn/{category}/{slug}", m.HandleLearnItem, http.MethodGet)

	route("/reminders", m.HandleReminders, http.MethodGet, http.MethodPost)
	route("/reminders/{id}/complete", m.HandleCompleteReminder, http.MethodPost)
	route("/period", m.HandlePeriod, http.MethodGet, http.MethodPost)
	route("/period/partner", m.HandlePartner, http.MethodPost)

	route("/emergency", m.HandleEmergency, http.MethodGet)
	route("/help", m.HandleHelp, http.MethodGet)

	return r, nil
}
