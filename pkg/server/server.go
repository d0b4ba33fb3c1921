// Package server exposes a set of managed devices over HTTP: an
// embedded overview page and a JSON API for identification, raw
// queries and connection control. Built over dummies it demonstrates
// the whole surface without hardware.
package server

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type Server struct {
	devices []*ManagedDevice
	byName  map[string]*ManagedDevice
	tmpl    *template.Template
	logger  log.FieldLogger
}

func NewServer(devices []*ManagedDevice, tmpl *template.Template, logger log.FieldLogger) *Server {
	byName := make(map[string]*ManagedDevice, len(devices))
	for _, dev := range devices {
		byName[dev.Name()] = dev
	}

	return &Server{
		devices: devices,
		byName:  byName,
		tmpl:    tmpl,
		logger:  logger.WithField("component", "server"),
	}
}

// Routes builds the router with all API and page handlers attached.
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/devices", s.handleDevices).Methods(http.MethodGet)
	api.HandleFunc("/devices/{name}", s.handleDescriptor).Methods(http.MethodGet)
	api.HandleFunc("/devices/{name}/idn", s.handleIDN).Methods(http.MethodGet)
	api.HandleFunc("/devices/{name}/query", s.handleQuery).Methods(http.MethodPost)
	api.HandleFunc("/devices/{name}/connect", s.handleConnect).Methods(http.MethodPut)
	api.HandleFunc("/devices/{name}/disconnect", s.handleDisconnect).Methods(http.MethodPut)

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debugf("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

// device resolves the {name} route variable, answering 404 for names
// the server does not manage.
func (s *Server) device(w http.ResponseWriter, r *http.Request) (*ManagedDevice, bool) {
	name := mux.Vars(r)["name"]
	dev, ok := s.byName[name]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown device %s", name))
		return nil, false
	}
	return dev, true
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Devices []Summary
	}{}
	for _, dev := range s.devices {
		data.Devices = append(data.Devices, dev.Summary())
	}

	if err := s.tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		s.logger.Errorf("Error rendering template: %v", err)
	}
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	summaries := make([]Summary, 0, len(s.devices))
	for _, dev := range s.devices {
		summaries = append(summaries, dev.Summary())
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleDescriptor(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.device(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dev.Descriptor())
}

func (s *Server) handleIDN(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.device(w, r)
	if !ok {
		return
	}

	idn, err := dev.IDN()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"idn": idn})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.device(w, r)
	if !ok {
		return
	}

	var body struct {
		Command string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("bad request body: %v", err))
		return
	}
	if body.Command == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("empty command"))
		return
	}

	resp, err := dev.Query(body.Command)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": resp})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.device(w, r)
	if !ok {
		return
	}

	if err := dev.Connect(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, dev.Summary())
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.device(w, r)
	if !ok {
		return
	}

	if err := dev.Disconnect(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, dev.Summary())
}
