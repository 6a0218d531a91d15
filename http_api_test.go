package cloudadapter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travis-ci/cloudadapter/resource"
)

func newTestAPI(t *testing.T, respond func(r *recordedRequest) (int, string)) http.Handler {
	fp := newFakeProvider(t, respond)
	api := &APIHandler{
		Session: newEC2TestSession(t, fp, nil),
		Auth:    "admin:sekrit",
	}
	return api.Router()
}

func serve(h http.Handler, method, path string, auth bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth {
		req.SetBasicAuth("admin", "sekrit")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestAPIHandler_Auth(t *testing.T) {
	h := newTestAPI(t, func(r *recordedRequest) (int, string) {
		return 200, `<DescribeInstancesResponse/>`
	})

	w := serve(h, "GET", "/healthz", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())

	w = serve(h, "GET", "/vms", false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "travis-ci/cloud-adapter")

	req := httptest.NewRequest("GET", "/vms", nil)
	req.SetBasicAuth("admin", "wrong")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(h, "GET", "/vms", true)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIHandler_GetVirtualMachine(t *testing.T) {
	h := newTestAPI(t, func(r *recordedRequest) (int, string) {
		if r.Form.Get("InstanceId.1") == "i-1" {
			return 200, ec2Instance("DescribeInstancesResponse", "i-1", "running", "az-1")
		}
		return 400, ec2Error("InvalidInstanceID.NotFound", "no such instance")
	})

	w := serve(h, "GET", "/vms/i-1", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	vm := &resource.VirtualMachine{}
	require.Nil(t, json.Unmarshal(w.Body.Bytes(), vm))
	assert.Equal(t, "i-1", vm.ID)
	assert.Equal(t, resource.VmStateRunning, vm.State)

	w = serve(h, "GET", "/vms/i-missing", true)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"error"`)
}

func TestAPIHandler_RetrievePassword(t *testing.T) {
	h := newTestAPI(t, func(r *recordedRequest) (int, string) {
		if r.Form.Get("InstanceId") == "i-ready" {
			return 200, `<GetPasswordDataResponse><passwordData>s3cret</passwordData></GetPasswordDataResponse>`
		}
		return 200, `<GetPasswordDataResponse><passwordData/></GetPasswordDataResponse>`
	})

	w := serve(h, "POST", "/vms/i-ready/password", true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"password":"s3cret"`)

	w = serve(h, "POST", "/vms/i-slow/password", true)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"instance_id":"i-slow"`)
}

func TestAPIHandler_ListProducts(t *testing.T) {
	h := newTestAPI(t, func(r *recordedRequest) (int, string) { return 500, "" })

	w := serve(h, "GET", "/products?arch=i32", true)
	require.Equal(t, http.StatusOK, w.Code)
	products := []resource.Product{}
	require.Nil(t, json.Unmarshal(w.Body.Bytes(), &products))
	ids := []string{}
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	assert.Contains(t, ids, "m1.small")

	w = serve(h, "GET", "/products", true)
	require.Equal(t, http.StatusOK, w.Code)
	both := map[string][]resource.Product{}
	require.Nil(t, json.Unmarshal(w.Body.Bytes(), &both))
	assert.Contains(t, both, "I32")
	assert.Contains(t, both, "I64")

	w = serve(h, "GET", "/products?arch=sparc", true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPIHandler_ProviderFailure(t *testing.T) {
	h := newTestAPI(t, func(r *recordedRequest) (int, string) {
		return 500, ec2Error("InternalError", "down")
	})

	w := serve(h, "GET", "/inventory", true)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = serve(h, "GET", "/vlans", true)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestAPIHandler_GetInventory(t *testing.T) {
	h := newTestAPI(t, func(r *recordedRequest) (int, string) {
		if r.Form.Get("Action") == "DescribeVpcs" {
			return 200, `<DescribeVpcsResponse><vpcSet><item><vpcId>vpc-1</vpcId></item></vpcSet></DescribeVpcsResponse>`
		}
		return 200, ec2Instance("DescribeInstancesResponse", "i-1", "running", "az-1")
	})

	w := serve(h, "GET", "/inventory", true)
	require.Equal(t, http.StatusOK, w.Code)

	inv := &Inventory{}
	require.Nil(t, json.Unmarshal(w.Body.Bytes(), inv))
	assert.Len(t, inv.VirtualMachines, 1)
	require.Len(t, inv.VLANs, 1)
	assert.Equal(t, "0.0.0.0/0", inv.VLANs[0].CIDR)
	assert.Equal(t, "vpc-1", inv.VLANs[0].Name)
}
