package license

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"license-service/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newTestRouter(f *fixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Error())
	NewHandler(f.svc).Register(r.Group("/api/v1"))
	return r
}

func doJSON(t *testing.T, r http.Handler, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w, out
}

func TestHandlerLifecycle(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "P1-app", true)
	f.seedLicense(t, scenarioKey, "P1-app", StatusAvailable, true)
	r := newTestRouter(f)

	w, body := doJSON(t, r, "/api/v1/license/activate", map[string]string{
		"productId":  "P1-app",
		"licenseKey": scenarioKey,
		"hardwareId": "HW-00000001",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, true, body["success"])
	token, _ := body["activationToken"].(string)
	require.NotEmpty(t, token)

	w, body = doJSON(t, r, "/api/v1/license/verify", map[string]string{"activationToken": token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, true, body["valid"])
	require.Equal(t, "P1-app", body["productId"])
	require.Equal(t, "activated", body["status"])
	require.NotEmpty(t, body["activatedAt"])

	w, body = doJSON(t, r, "/api/v1/license/deactivate", map[string]string{"activationToken": token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "License deactivated successfully", body["message"])

	w, body = doJSON(t, r, "/api/v1/license/verify", map[string]string{"activationToken": token})
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, false, body["success"])
	errBody := body["error"].(map[string]any)
	require.Equal(t, string(KindInvalidToken), errBody["kind"])
	require.Equal(t, "Invalid activation token.", errBody["message"])
}

func TestHandlerActivateValidation(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)

	w, body := doJSON(t, r, "/api/v1/license/activate", map[string]string{
		"productId":     "P1",
		"licenseKey":    "short",
		"customerEmail": "not-an-email",
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	errBody := body["error"].(map[string]any)
	require.Equal(t, "VALIDATION_FAILED", errBody["code"])

	fields := map[string]bool{}
	for _, d := range errBody["details"].([]any) {
		fields[d.(map[string]any)["field"].(string)] = true
	}
	require.True(t, fields["productId"])
	require.True(t, fields["licenseKey"])
	require.True(t, fields["hardwareId"])
	require.True(t, fields["customerEmail"])
}

func TestHandlerActivateConflict(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "P1-app", true)
	f.seedLicense(t, scenarioKey, "P1-app", StatusAvailable, true)
	r := newTestRouter(f)

	_, err := f.svc.Activate(context.Background(), activateReq("P1-app", scenarioKey, "HW-00000001"))
	require.NoError(t, err)

	w, body := doJSON(t, r, "/api/v1/license/activate", map[string]string{
		"productId":  "P1-app",
		"licenseKey": scenarioKey,
		"hardwareId": "HW-00000002",
	})
	require.Equal(t, http.StatusConflict, w.Code)
	errBody := body["error"].(map[string]any)
	require.Equal(t, string(KindAlreadyActivatedElsewhere), errBody["kind"])
	require.Equal(t, "CONFLICT", errBody["code"])
}

func TestHandlerVerifyRequiresToken(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)

	w, _ := doJSON(t, r, "/api/v1/license/verify", map[string]string{})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
