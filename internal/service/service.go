// Package service binds a device wrapper to the network RPC layer. Every
// wrapper method is exposed as POST /rpc/<method> with a JSON args array;
// the base serialises calls so that one device only ever sees one command
// at a time.
package service

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/MSLNZ/pr-superk-mono/internal/httputil"
)

// Method is one RPC-callable operation. Implementations decode their own
// positional arguments and return a JSON-serialisable result.
type Method func(args []json.RawMessage) (interface{}, error)

// Base is the service half shared by every device binding: the method
// table, the record projection and the per-device call lock.
type Base struct {
	name    string
	record  map[string]interface{}
	methods map[string]Method

	// mu serialises RPC calls onto the single physical device
	mu sync.Mutex
}

// NewBase creates a service named name exposing the given record.
func NewBase(name string, record map[string]interface{}) *Base {
	return &Base{
		name:    name,
		record:  record,
		methods: make(map[string]Method),
	}
}

// Name returns the service name used for manager registration.
func (b *Base) Name() string { return b.name }

// Handle adds one method to the RPC surface.
func (b *Base) Handle(name string, m Method) {
	b.methods[name] = m
}

// Methods returns the names of the RPC methods, in no particular order.
func (b *Base) Methods() []string {
	names := make([]string, 0, len(b.methods))
	for name := range b.methods {
		names = append(names, name)
	}
	return names
}

// Call invokes one RPC method directly, holding the device lock.
func (b *Base) Call(method string, args []json.RawMessage) (interface{}, error) {
	m, ok := b.methods[method]
	if !ok {
		return nil, fmt.Errorf("unknown method %q", method)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return m(args)
}

type rpcRequest struct {
	Args []json.RawMessage `json:"args"`
}

// ServeMux returns the HTTP surface of the service.
func (b *Base) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/rpc/", b.handleRPC)
	mux.HandleFunc("/record", b.handleRecord)
	mux.HandleFunc("/healthz", b.handleHealthz)
	return mux
}

func (b *Base) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	method := strings.TrimPrefix(r.URL.Path, "/rpc/")
	if method == "" || strings.Contains(method, "/") {
		httputil.NotFound(w, "no such method")
		return
	}
	if _, ok := b.methods[method]; !ok {
		httputil.NotFound(w, fmt.Sprintf("unknown method %q", method))
		return
	}

	var req rpcRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid request body: %v", err))
			return
		}
	}

	result, err := b.Call(method, req.Args)
	if err != nil {
		httputil.WriteJSONOK(w, map[string]interface{}{"error": err.Error()})
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{"result": result})
}

func (b *Base) handleRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, b.record)
}

func (b *Base) handleHealthz(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{"status": "ok"})
}

// argument decoding helpers shared by the device bindings

func wantArgs(args []json.RawMessage, n int) error {
	if len(args) != n {
		return fmt.Errorf("expected %d argument(s), got %d", n, len(args))
	}
	return nil
}

func floatArg(args []json.RawMessage, i int) (float64, error) {
	var v float64
	if err := json.Unmarshal(args[i], &v); err != nil {
		return 0, fmt.Errorf("argument %d: expected a number: %v", i, err)
	}
	return v, nil
}

func intArg(args []json.RawMessage, i int) (int, error) {
	var v int
	if err := json.Unmarshal(args[i], &v); err != nil {
		return 0, fmt.Errorf("argument %d: expected an integer: %v", i, err)
	}
	return v, nil
}

func boolArg(args []json.RawMessage, i int) (bool, error) {
	var v bool
	if err := json.Unmarshal(args[i], &v); err != nil {
		return false, fmt.Errorf("argument %d: expected a boolean: %v", i, err)
	}
	return v, nil
}

func stringArg(args []json.RawMessage, i int) (string, error) {
	var v string
	if err := json.Unmarshal(args[i], &v); err != nil {
		return "", fmt.Errorf("argument %d: expected a string: %v", i, err)
	}
	return v, nil
}

// nullary adapts a no-argument wrapper call.
func nullary(fn func() (interface{}, error)) Method {
	return func(args []json.RawMessage) (interface{}, error) {
		if err := wantArgs(args, 0); err != nil {
			return nil, err
		}
		return fn()
	}
}
