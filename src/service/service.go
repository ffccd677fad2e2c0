package service

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"github.com/ucoin-io/ucoind/src/amendment"
	"github.com/ucoin-io/ucoind/src/branch"
	"github.com/ucoin-io/ucoind/src/merkle"
	"github.com/ucoin-io/ucoind/src/node"
)

const amendmentsPrefix = "/amendments/view/"

// Service serves the read API of a node over HTTP.
type Service struct {
	sync.Mutex

	bindAddress string
	node        *node.Node
	logger      *logrus.Entry

	mux    *http.ServeMux
	server *http.Server
}

// NewService ...
func NewService(bindAddress string, n *node.Node, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		node:        n,
		logger:      logger,
		mux:         http.NewServeMux(),
	}

	service.registerHandlers()

	return &service
}

func (s *Service) registerHandlers() {
	s.logger.Debug("Registering ucoind API handlers")
	s.mux.HandleFunc(amendmentsPrefix, s.makeHandler(s.GetAmendmentView))
	s.mux.HandleFunc("/blockchain/current", s.makeHandler(s.GetCurrent))
	s.mux.HandleFunc("/blockchain/branches", s.makeHandler(s.GetBranches))
	s.mux.HandleFunc("/blockchain/block/", s.makeHandler(s.GetBlock))
	s.mux.HandleFunc("/node/summary", s.makeHandler(s.GetSummary))
	s.mux.HandleFunc("/node/stats", s.makeHandler(s.GetStats))
	s.mux.HandleFunc("/node/peers", s.makeHandler(s.GetPeers))
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		fn(w, r)
	}
}

// Handler returns the API handler, with CORS enabled for every origin.
func (s *Service) Handler() http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}).Handler(s.mux)
}

// Serve calls ListenAndServe. This is a blocking call.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving ucoind API")

	s.Lock()
	s.server = &http.Server{Addr: s.bindAddress, Handler: s.Handler()}
	server := s.server
	s.Unlock()

	err := server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		s.logger.Error(err)
	}
}

// Close stops a server started with Serve.
func (s *Service) Close() error {
	s.Lock()
	defer s.Unlock()
	if s.server == nil {
		return nil
	}
	return s.server.Close()
}

// GetAmendmentView serves /amendments/view/{id}/{self|signatures|status|members|voters}
func (s *Service) GetAmendmentView(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, amendmentsPrefix), "/")
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	id, view := parts[0], parts[1]

	if _, _, err := amendment.ParseID(id); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if view == "self" {
		self, err := s.node.Self(id)
		s.respond(w, r, self, err)
		return
	}

	var get func(string, merkle.WindowSpec) (*node.MerkleResponse, error)
	switch view {
	case "signatures":
		get = s.node.Signatures
	case "status":
		get = s.node.Status
	case "members":
		get = s.node.Members
	case "voters":
		get = s.node.Voters
	default:
		http.NotFound(w, r)
		return
	}

	spec, err := windowSpec(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := get(id, spec)
	s.respond(w, r, res, err)
}

// GetCurrent ...
func (s *Service) GetCurrent(w http.ResponseWriter, r *http.Request) {
	cur, err := s.node.Current()
	s.respond(w, r, cur, err)
}

// GetBranches ...
func (s *Service) GetBranches(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, s.node.Branches().Branches(), nil)
}

// GetBlock returns the amendment with the given number on the current branch.
func (s *Service) GetBlock(w http.ResponseWriter, r *http.Request) {
	param := strings.TrimPrefix(r.URL.Path, "/blockchain/block/")

	number, err := strconv.Atoi(param)
	if err != nil || number < 0 {
		s.logger.WithField("param", param).Debug("Parsing amendment number")
		http.Error(w, "Number format is incorrect, must be a positive or zero integer", http.StatusBadRequest)
		return
	}

	am, err := s.node.ByNumber(number)
	s.respond(w, r, am, err)
}

// GetSummary ...
func (s *Service) GetSummary(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, s.node.Summary(), nil)
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, s.node.GetStats(), nil)
}

// GetPeers ...
func (s *Service) GetPeers(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, s.node.GetPeers(), nil)
}

// respond writes res as JSON, indented if the nice parameter is set, or the
// HTTP status matching err.
func (s *Service) respond(w http.ResponseWriter, r *http.Request, res interface{}, err error) {
	if err != nil {
		status := statusOf(err)
		http.Error(w, err.Error(), status)
		if status == http.StatusInternalServerError {
			s.logger.WithError(err).WithField("path", r.URL.Path).Error("Serving request")
		}
		return
	}

	encoder := json.NewEncoder(w)

	if r.URL.Query().Get("nice") != "" {
		w.Header().Set("Content-Type", "text/plain")
		encoder.SetIndent("", "  ")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}

	if err := encoder.Encode(res); err != nil {
		s.logger.WithError(err).Error("Encoding response")
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, amendment.ErrBadID), errors.Is(err, amendment.ErrIDRequired):
		return http.StatusBadRequest
	case errors.Is(err, branch.ErrBlockNotFound), errors.Is(err, branch.ErrEmpty):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// windowSpec reads the leaf, lstart and lend query parameters.
func windowSpec(r *http.Request) (merkle.WindowSpec, error) {
	q := r.URL.Query()
	spec := merkle.WindowSpec{Leaf: q.Get("leaf")}

	for name, dst := range map[string]*int{"lstart": &spec.Start, "lend": &spec.End} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return spec, &paramError{name}
		}
		*dst = n
	}

	return spec, nil
}

type paramError struct {
	name string
}

func (e *paramError) Error() string {
	return e.name + " must be a positive or zero integer"
}
