package cloudadapter

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/travis-ci/cloudadapter/context"
	adaptererrors "github.com/travis-ci/cloudadapter/errors"
	"github.com/travis-ci/cloudadapter/resource"
)

// APIHandler serves a read-mostly HTTP view of a session.
type APIHandler struct {
	Session *Session

	// Auth is the "username:password" pair every request but the health
	// check must carry.
	Auth string
}

// Router builds the routes of the HTTP API.
func (api *APIHandler) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", api.HealthCheck).Methods("GET")

	r.HandleFunc("/vms", api.ListVirtualMachines).Methods("GET")
	r.HandleFunc("/vms/{id}", api.GetVirtualMachine).Methods("GET")
	r.HandleFunc("/vms/{id}/password", api.RetrievePassword).Methods("POST")

	r.HandleFunc("/vlans", api.ListVlans).Methods("GET")
	r.HandleFunc("/vlans/{id}", api.GetVlan).Methods("GET")

	r.HandleFunc("/products", api.ListProducts).Methods("GET")
	r.HandleFunc("/inventory", api.GetInventory).Methods("GET")

	r.Use(api.tagRequest, api.CheckAuth)
	return r
}

// tagRequest gives every API request its own request id so the provider
// calls it makes can be told apart in the logs.
func (api *APIHandler) tagRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx := context.FromComponent(context.WithRequestID(req.Context()), "http_api")
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// CheckAuth is a middleware for all HTTP API methods that ensures that the
// configured basic auth credentials were passed in the request.
func (api *APIHandler) CheckAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if strings.HasPrefix(req.URL.Path, "/healthz") {
			next.ServeHTTP(w, req)
			return
		}

		username, password, ok := req.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", "Basic realm=\"travis-ci/cloud-adapter\"")
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		authBytes := []byte(fmt.Sprintf("%s:%s", username, password))
		if subtle.ConstantTimeCompare(authBytes, []byte(api.Auth)) != 1 {
			w.WriteHeader(http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, req)
	})
}

func (api *APIHandler) HealthCheck(w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func (api *APIHandler) ListVirtualMachines(w http.ResponseWriter, req *http.Request) {
	vms, err := api.Session.ListVirtualMachines(req.Context())
	if err != nil {
		api.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, vms)
}

func (api *APIHandler) GetVirtualMachine(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]

	vm, err := api.Session.GetVirtualMachine(req.Context(), id)
	if err != nil {
		api.writeError(w, req, err)
		return
	}
	if vm == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Message: fmt.Sprintf("no virtual machine %q", id)})
		return
	}
	writeJSON(w, http.StatusOK, vm)
}

// RetrievePassword retries password retrieval for an instance. A pending
// result is answered with 202 Accepted.
func (api *APIHandler) RetrievePassword(w http.ResponseWriter, req *http.Request) {
	result, err := api.Session.RetrievePassword(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		api.writeError(w, req, err)
		return
	}

	status := http.StatusOK
	if result.Pending() {
		status = http.StatusAccepted
	}
	writeJSON(w, status, result)
}

func (api *APIHandler) ListVlans(w http.ResponseWriter, req *http.Request) {
	vlans, err := api.Session.ListVlans(req.Context())
	if err != nil {
		api.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, vlans)
}

func (api *APIHandler) GetVlan(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]

	vlan, err := api.Session.GetVlan(req.Context(), id)
	if err != nil {
		api.writeError(w, req, err)
		return
	}
	if vlan == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Message: fmt.Sprintf("no vlan %q", id)})
		return
	}
	writeJSON(w, http.StatusOK, vlan)
}

// ListProducts lists the catalog, optionally narrowed with ?arch=I32|I64.
func (api *APIHandler) ListProducts(w http.ResponseWriter, req *http.Request) {
	arch := resource.Architecture(strings.ToUpper(req.URL.Query().Get("arch")))

	switch arch {
	case resource.ArchitectureI32, resource.ArchitectureI64:
		writeJSON(w, http.StatusOK, api.Session.Products(arch))
	case "":
		writeJSON(w, http.StatusOK, map[resource.Architecture][]resource.Product{
			resource.ArchitectureI32: api.Session.Products(resource.ArchitectureI32),
			resource.ArchitectureI64: api.Session.Products(resource.ArchitectureI64),
		})
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: fmt.Sprintf("unknown architecture %q", arch)})
	}
}

func (api *APIHandler) GetInventory(w http.ResponseWriter, req *http.Request) {
	inv, err := api.Session.Inventory(req.Context())
	if err != nil {
		api.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (api *APIHandler) writeError(w http.ResponseWriter, req *http.Request, err error) {
	status := http.StatusBadGateway
	if kind, ok := adaptererrors.KindOf(err); ok {
		switch kind {
		case adaptererrors.KindNotFound:
			status = http.StatusNotFound
		case adaptererrors.KindNotSupported:
			status = http.StatusNotImplemented
		case adaptererrors.KindConfiguration:
			status = http.StatusInternalServerError
		case adaptererrors.KindTimeout:
			status = http.StatusGatewayTimeout
		}
	}

	context.LoggerFromContext(req.Context()).WithFields(logrus.Fields{
		"self":   "http_api",
		"err":    err,
		"path":   req.URL.Path,
		"status": status,
	}).Error("request failed")

	writeJSON(w, status, errorResponse{Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Message string `json:"error"`
}
