package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"license-service/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type sampleRequest struct {
	LicenseKey string `json:"licenseKey" binding:"required,min=10"`
	Email      string `json:"customerEmail" binding:"omitempty,email"`
}

func TestBindJSONValidation(t *testing.T) {
	registerJSONTagNames()
	r := gin.New()
	r.Use(middleware.Error())
	r.POST("/", func(c *gin.Context) {
		var req sampleRequest
		if err := BindJSON(c, &req); err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"licenseKey":"short","customerEmail":"nope"}`)))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Details []struct {
				Field   string `json:"field"`
				Message string `json:"message"`
			} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "VALIDATION_FAILED", body.Error.Code)
	require.Len(t, body.Error.Details, 2)
	require.Equal(t, "licenseKey", body.Error.Details[0].Field)
	require.Equal(t, "customerEmail", body.Error.Details[1].Field)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{not json`)))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"licenseKey":"KEY-AAAA-BBBB"}`)))
	require.Equal(t, http.StatusOK, w.Code)
}
