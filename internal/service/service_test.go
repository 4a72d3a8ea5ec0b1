package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MSLNZ/pr-superk-mono/internal/equipment"
	"github.com/MSLNZ/pr-superk-mono/internal/filterwheel"
	"github.com/MSLNZ/pr-superk-mono/internal/httputil"
	"github.com/MSLNZ/pr-superk-mono/internal/monochromator"
	"github.com/MSLNZ/pr-superk-mono/internal/nkt"
	"github.com/MSLNZ/pr-superk-mono/internal/superk"
)

func newHRSService(t *testing.T) *Base {
	t.Helper()
	record := &equipment.Record{Alias: "mono-hrs", Model: "HRS500M"}
	mono, err := monochromator.New(record, monochromator.NewSimController())
	require.NoError(t, err)
	return NewHRS(mono)
}

func newWheelService(t *testing.T) *Base {
	t.Helper()
	record := &equipment.Record{Alias: "nd-wheel", Model: "FW212CNEB"}
	wheel, err := filterwheel.New(record, filterwheel.NewSim())
	require.NoError(t, err)
	return NewFW212C(wheel)
}

func newSuperKService(t *testing.T) *Base {
	t.Helper()
	record := &equipment.Record{Alias: "superk", Serial: "X123"}
	laser, err := superk.New(record, nkt.NewSimulator(nkt.ModuleTypeFianiumG3, "X123"))
	require.NoError(t, err)
	return NewSuperK(laser)
}

// call posts one RPC request and decodes the reply envelope.
func call(t *testing.T, server *httptest.Server, method string, args ...interface{}) (interface{}, string) {
	t.Helper()

	body, err := json.Marshal(map[string]interface{}{"args": args})
	require.NoError(t, err)

	resp, err := http.Post(server.URL+"/rpc/"+method, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var envelope struct {
		Result interface{} `json:"result"`
		Error  string      `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope.Result, envelope.Error
}

func TestRPCSetWavelength(t *testing.T) {
	server := httptest.NewServer(newHRSService(t).ServeMux())
	defer server.Close()

	result, rpcErr := call(t, server, "set_wavelength", 500.12345)
	require.Empty(t, rpcErr)
	assert.InDelta(t, 500.123, result.(float64), 1e-9)
}

func TestRPCDomainError(t *testing.T) {
	server := httptest.NewServer(newHRSService(t).ServeMux())
	defer server.Close()

	result, rpcErr := call(t, server, "set_filter_position", 9)
	assert.Nil(t, result)
	assert.Contains(t, rpcErr, "range")
}

func TestRPCUnknownMethod(t *testing.T) {
	server := httptest.NewServer(newHRSService(t).ServeMux())
	defer server.Close()

	resp, err := http.Post(server.URL+"/rpc/no_such_method", "application/json",
		bytes.NewReader([]byte(`{"args":[]}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRPCMethodNotAllowed(t *testing.T) {
	server := httptest.NewServer(newHRSService(t).ServeMux())
	defer server.Close()

	resp, err := http.Get(server.URL + "/rpc/get_wavelength")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRPCWrongArgumentCount(t *testing.T) {
	server := httptest.NewServer(newHRSService(t).ServeMux())
	defer server.Close()

	_, rpcErr := call(t, server, "set_wavelength")
	assert.Contains(t, rpcErr, "expected 1 argument(s)")
}

func TestRecordEndpoint(t *testing.T) {
	server := httptest.NewServer(newWheelService(t).ServeMux())
	defer server.Close()

	resp, err := http.Get(server.URL + "/record")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var record map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&record))
	assert.Equal(t, "nd-wheel", record["alias"])
	assert.Equal(t, "FW212CNEB", record["model"])
}

func TestHealthzEndpoint(t *testing.T) {
	server := httptest.NewServer(newSuperKService(t).ServeMux())
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSuperKBinding(t *testing.T) {
	server := httptest.NewServer(newSuperKService(t).ServeMux())
	defer server.Close()

	result, rpcErr := call(t, server, "set_current_level", 12.3)
	require.Empty(t, rpcErr)
	assert.InDelta(t, 12.3, result.(float64), 1e-9)

	_, rpcErr = call(t, server, "emission", true)
	require.Empty(t, rpcErr)

	result, rpcErr = call(t, server, "is_emission_on")
	require.Empty(t, rpcErr)
	assert.Equal(t, true, result)

	result, rpcErr = call(t, server, "get_operating_modes")
	require.Empty(t, rpcErr)
	modes := result.(map[string]interface{})
	assert.Len(t, modes, 2)
	assert.Contains(t, modes, "Constant current")
	assert.Contains(t, modes, "Power lock")
}

func TestWheelBinding(t *testing.T) {
	server := httptest.NewServer(newWheelService(t).ServeMux())
	defer server.Close()

	result, rpcErr := call(t, server, "set_position", 8)
	require.Empty(t, rpcErr)
	assert.EqualValues(t, 8, result)

	_, rpcErr = call(t, server, "set_position", 13)
	assert.Contains(t, rpcErr, "range")
}

func TestCallArgumentTypeMismatch(t *testing.T) {
	b := newWheelService(t)

	_, err := b.Call("set_position", []json.RawMessage{json.RawMessage(`"three"`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected an integer")
}

func TestManagerClientRegister(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, "{}")

	client := NewManagerClient("http://manager:1875", mock)
	linkID, err := client.Register("superk", "http://localhost:9000")
	require.NoError(t, err)
	assert.NotEmpty(t, linkID)

	req := mock.GetRequest(0)
	require.NotNil(t, req)
	assert.Equal(t, "/register", req.URL.Path)

	var reg Registration
	require.NoError(t, json.NewDecoder(req.Body).Decode(&reg))
	assert.Equal(t, "superk", reg.Name)
	assert.Equal(t, "http://localhost:9000", reg.Address)
	assert.Equal(t, linkID, reg.LinkID)
}

func TestManagerClientRegisterRejected(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(http.StatusConflict, `{"error":"already registered"}`)

	client := NewManagerClient("http://manager:1875", mock)
	_, err := client.Register("superk", "http://localhost:9000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
}

func TestManagerClientUnregister(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, "{}")

	client := NewManagerClient("http://manager:1875", mock)
	require.NoError(t, client.Unregister("superk", "abc-123"))

	req := mock.GetRequest(0)
	require.NotNil(t, req)
	assert.Equal(t, "/unregister", req.URL.Path)
}

func TestWaitForManager(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddErrorResponse(errors.New("connection refused"))
	mock.AddResponse(http.StatusOK, `{"status":"ok"}`)

	client := NewManagerClient("http://manager:1875", mock)
	require.NoError(t, client.WaitForManager(5*time.Second))
	assert.Equal(t, 2, mock.RequestCount())
}

func TestWaitForManagerTimeout(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.DefaultError = errors.New("connection refused")

	client := NewManagerClient("http://manager:1875", mock)
	err := client.WaitForManager(0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not reachable")
}
