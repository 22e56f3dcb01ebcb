package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/enrollment-backend/internal/admission"
	"github.com/stemsi/enrollment-backend/internal/response"
)

// failAdmission maps an admission failure to its HTTP status and error code.
func failAdmission(c *gin.Context, err error) {
	var ae *admission.Error
	if !errors.As(err, &ae) {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	var (
		status int
		code   response.ErrCode
	)
	switch ae.Kind {
	case admission.KindNotFound:
		status, code = http.StatusNotFound, response.ErrNotFound
	case admission.KindAlreadyRegistered:
		status, code = http.StatusConflict, response.ErrAlreadyRegistered
	case admission.KindCourseFull:
		status, code = http.StatusConflict, response.ErrCourseFull
	case admission.KindWindowClosed:
		status, code = http.StatusBadRequest, response.ErrWindowClosed
	case admission.KindConflict:
		status, code = http.StatusConflict, response.ErrRegistrationConflict
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	fields := map[string]string{"reason": ae.Reason}
	if ae.CourseID != 0 {
		fields["course_id"] = strconv.Itoa(ae.CourseID)
	}
	if ae.StudentID != 0 {
		fields["student_id"] = strconv.Itoa(ae.StudentID)
	}
	response.FailWithFields(c, status, code, fields)
}

func paramID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id < 1 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}
