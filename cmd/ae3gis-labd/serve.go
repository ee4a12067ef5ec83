package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/docker/docker/client"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ae3gis-labd/internal/compiler"
	"ae3gis-labd/internal/config"
	"ae3gis-labd/internal/descriptor"
	"ae3gis-labd/internal/firewall"
	"ae3gis-labd/internal/labapi"
	"ae3gis-labd/internal/labdriver"
	"ae3gis-labd/internal/labproxy"
	"ae3gis-labd/internal/memstore"
	"ae3gis-labd/internal/ptyexec"
	"ae3gis-labd/internal/seeder"
	"ae3gis-labd/internal/statusstream"
	"ae3gis-labd/internal/tokenauth"
	"ae3gis-labd/internal/topology"
)

// server bundles the core adapters the demo HTTP surface wires together.
// It is deliberately not the production CRUD/auth layer spec.md excludes:
// it exists only so this module can run standalone end to end.
type server struct {
	cfg    *config.Config
	store  *memstore.Store
	auth   *tokenauth.Store
	driver *labdriver.Driver
	proxy  *labproxy.Handler
	fw     *firewall.Controller
	docker client.APIClient
}

func serveCmd(cfg *config.Config) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo HTTP surface wiring the core streams together",
		RunE: func(cmd *cobra.Command, args []string) error {
			docker, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
			if err != nil {
				return fmt.Errorf("connect to container engine: %w", err)
			}
			defer docker.Close()

			driver := newDriver(cfg)
			store := memstore.New()
			s := &server{
				cfg:    cfg,
				store:  store,
				auth:   tokenauth.New(cfg.InstructorToken),
				driver: driver,
				proxy:  labproxy.NewHandler(store, driver),
				fw:     firewall.New(cfg.ContainerEngineBinary, cfg.PrivilegeWrapper),
				docker: docker,
			}
			defer s.proxy.CloseIdleConnections()

			mux := s.routes()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			srv := &http.Server{Addr: addr, Handler: mux}
			go func() {
				<-ctx.Done()
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			slog.Info("serving", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8088", "HTTP listen address")
	return cmd
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /topologies", s.handleCreateTopology)
	mux.HandleFunc("POST /topologies/{id}/deploy", s.handleDeploy)
	mux.HandleFunc("POST /topologies/{id}/destroy", s.handleDestroy)
	mux.HandleFunc("GET /topologies/{id}/status", s.handleStatusStream)
	mux.HandleFunc("GET /topologies/{id}/exec/{containerID}", s.handleExec)
	mux.HandleFunc("GET /topologies/{id}/firewall/{containerID}", s.handleFirewallList)
	mux.HandleFunc("PUT /topologies/{id}/firewall/{containerID}", s.handleFirewallApply)
	mux.HandleFunc("/proxy/{id}/{containerID}/{rest...}", s.handleProxy)
	return mux
}

func (s *server) identify(r *http.Request) (labapi.Identity, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		}
	}
	return s.auth.Authenticate(token)
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), labapi.ToHTTPStatus(err))
}

func (s *server) handleCreateTopology(w http.ResponseWriter, r *http.Request) {
	identity, err := s.identify(r)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", labapi.ErrUnauthorized, err))
		return
	}
	if !identity.IsInstructor() {
		writeError(w, fmt.Errorf("%w: instructor token required", labapi.ErrForbidden))
		return
	}

	var t topology.Topology
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, &labapi.ValidationError{Field: "body", Message: err.Error()})
		return
	}

	topologyID := uuid.New().String()
	s.store.Put(topologyID, t)

	d, diag := compiler.Compile(t, topologyID)
	if _, err := descriptor.Write(s.cfg.Workdir, topologyID, d); err != nil {
		writeError(w, err)
		return
	}
	if err := saveTopology(s.cfg.Workdir, topologyID, t); err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"topology_id": topologyID,
		"skipped":     diag.Skipped,
	})
}

func (s *server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	identity, err := s.identify(r)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", labapi.ErrUnauthorized, err))
		return
	}
	if !identity.CanAccess(r.PathValue("id")) {
		writeError(w, labapi.ErrForbidden)
		return
	}
	topologyID := r.PathValue("id")

	t, ok, err := s.store.Get(r.Context(), topologyID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, labapi.ErrNotFound)
		return
	}
	d, _ := compiler.Compile(t, topologyID)

	sd := seeder.New(s.docker, s.cfg.Workdir)
	if err := sd.SeedTopology(r.Context(), topologyID, t, d); err != nil {
		writeError(w, err)
		return
	}

	stdout, err := s.driver.Deploy(r.Context(), topologyID)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = s.store.SetStatus(r.Context(), topologyID, "deployed")
	fmt.Fprintln(w, stdout)
}

func (s *server) handleDestroy(w http.ResponseWriter, r *http.Request) {
	identity, err := s.identify(r)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", labapi.ErrUnauthorized, err))
		return
	}
	if !identity.CanAccess(r.PathValue("id")) {
		writeError(w, labapi.ErrForbidden)
		return
	}
	topologyID := r.PathValue("id")

	stdout, err := s.driver.Destroy(r.Context(), topologyID)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = s.store.SetStatus(r.Context(), topologyID, "destroyed")
	fmt.Fprintln(w, stdout)
}

func (s *server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	identity, err := s.identify(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	peer, ok := newSSEPeer(w)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	topologyID := r.PathValue("id")
	t, _, _ := s.store.Get(r.Context(), topologyID)

	session := statusstream.NewSession(s.store, s.driver)
	_ = session.Run(r.Context(), identity, topologyID, t.DeploymentName(), peer)
}

func (s *server) handleExec(w http.ResponseWriter, r *http.Request) {
	identity, err := s.identify(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if !identity.CanAccess(r.PathValue("id")) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	topologyID := r.PathValue("id")
	containerID := r.PathValue("containerID")

	t, ok, err := s.store.Get(r.Context(), topologyID)
	if err != nil || !ok {
		http.Error(w, "topology not found", http.StatusNotFound)
		return
	}
	dockerName := fmt.Sprintf("clab-%s-%s", t.DeploymentName(), containerID)

	peer, err := newFramedPeer(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	session, err := ptyexec.NewSession(s.cfg.ContainerEngineBinary)
	if err != nil {
		_ = peer.Close()
		slog.Error("create pty session", "err", err)
		return
	}
	if err := session.Run(r.Context(), dockerName, peer); err != nil {
		slog.Warn("pty session ended with error", "topology_id", topologyID, "container_id", containerID, "err", err)
	}
}

func (s *server) handleFirewallList(w http.ResponseWriter, r *http.Request) {
	identity, err := s.identify(r)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", labapi.ErrUnauthorized, err))
		return
	}
	if !identity.CanAccess(r.PathValue("id")) {
		writeError(w, labapi.ErrForbidden)
		return
	}
	dockerName := s.firewallTarget(r)

	rules, err := s.fw.List(r.Context(), dockerName)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rules)
}

func (s *server) handleFirewallApply(w http.ResponseWriter, r *http.Request) {
	identity, err := s.identify(r)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", labapi.ErrUnauthorized, err))
		return
	}
	if !identity.IsInstructor() {
		writeError(w, fmt.Errorf("%w: instructor token required", labapi.ErrForbidden))
		return
	}
	dockerName := s.firewallTarget(r)

	var rules []firewall.Rule
	if err := json.NewDecoder(r.Body).Decode(&rules); err != nil {
		writeError(w, &labapi.ValidationError{Field: "body", Message: err.Error()})
		return
	}

	result, err := s.fw.Apply(r.Context(), dockerName, rules)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

func (s *server) firewallTarget(r *http.Request) string {
	t, _, _ := s.store.Get(r.Context(), r.PathValue("id"))
	return fmt.Sprintf("clab-%s-%s", t.DeploymentName(), r.PathValue("containerID"))
}

func (s *server) handleProxy(w http.ResponseWriter, r *http.Request) {
	identity, err := s.identify(r)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", labapi.ErrUnauthorized, err))
		return
	}
	topologyID := r.PathValue("id")
	containerID := r.PathValue("containerID")

	target, err := s.proxy.Target(r.Context(), identity, topologyID, containerID)
	if err != nil {
		writeError(w, err)
		return
	}

	pathPrefix := fmt.Sprintf("/proxy/%s/%s", topologyID, containerID)
	labproxy.NewReverseProxy(s.proxy.Client, target, pathPrefix).ServeHTTP(w, r)
}
