package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/enrollment-backend/internal/admission"
	"github.com/stemsi/enrollment-backend/internal/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailAdmission(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		err    error
		status int
		code   response.ErrCode
	}{
		{"not found", &admission.Error{Kind: admission.KindNotFound, StudentID: 1, CourseID: 2, Reason: "course not found"}, http.StatusNotFound, response.ErrNotFound},
		{"duplicate", &admission.Error{Kind: admission.KindAlreadyRegistered, StudentID: 1, CourseID: 2, Reason: "dup"}, http.StatusConflict, response.ErrAlreadyRegistered},
		{"full", &admission.Error{Kind: admission.KindCourseFull, StudentID: 1, CourseID: 2, Reason: "full"}, http.StatusConflict, response.ErrCourseFull},
		{"window", &admission.Error{Kind: admission.KindWindowClosed, StudentID: 1, CourseID: 2, Reason: "closed"}, http.StatusBadRequest, response.ErrWindowClosed},
		{"conflict", &admission.Error{Kind: admission.KindConflict, StudentID: 1, CourseID: 2, Reason: "busy"}, http.StatusConflict, response.ErrRegistrationConflict},
		{"infrastructure", &admission.Error{Kind: admission.KindInfrastructure, StudentID: 1, CourseID: 2, Reason: "db", Err: errors.New("boom")}, http.StatusInternalServerError, response.ErrInternal},
		{"foreign error", errors.New("boom"), http.StatusInternalServerError, response.ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)

			failAdmission(c, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			var body response.Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.code, body.Error.Code)

			if tt.status != http.StatusInternalServerError {
				assert.Equal(t, "1", body.Error.Fields["student_id"])
				assert.Equal(t, "2", body.Error.Fields["course_id"])
				assert.NotEmpty(t, body.Error.Fields["reason"])
			} else {
				assert.Empty(t, body.Error.Fields)
			}
		})
	}
}
