package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jorabeknazarmatov/test-platform/internal/model"
	"github.com/jorabeknazarmatov/test-platform/internal/response"
)

// Directory lists what a student picks from before entering the OTP.
type Directory interface {
	ListGroups(ctx context.Context) ([]model.Group, error)
	ListStudents(ctx context.Context, groupID int) ([]model.Student, error)
	ListSubjects(ctx context.Context) ([]model.Subject, error)
}

// DirectoryHandler proxies the student directory of the Session API.
type DirectoryHandler struct {
	dir Directory
}

// NewDirectoryHandler creates a new DirectoryHandler.
func NewDirectoryHandler(dir Directory) *DirectoryHandler {
	return &DirectoryHandler{dir: dir}
}

// ListGroups godoc
// GET /api/v1/directory/groups
func (h *DirectoryHandler) ListGroups(c *gin.Context) {
	groups, err := h.dir.ListGroups(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	if groups == nil {
		groups = []model.Group{}
	}
	response.Success(c, http.StatusOK, gin.H{"groups": groups})
}

// ListStudents godoc
// GET /api/v1/directory/groups/:id/students
func (h *DirectoryHandler) ListStudents(c *gin.Context) {
	groupID, err := strconv.Atoi(c.Param("id"))
	if err != nil || groupID <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	students, err := h.dir.ListStudents(c.Request.Context(), groupID)
	if err != nil {
		fail(c, err)
		return
	}
	if students == nil {
		students = []model.Student{}
	}
	response.Success(c, http.StatusOK, gin.H{"students": students})
}

// ListSubjects godoc
// GET /api/v1/directory/subjects
func (h *DirectoryHandler) ListSubjects(c *gin.Context) {
	subjects, err := h.dir.ListSubjects(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	if subjects == nil {
		subjects = []model.Subject{}
	}
	response.Success(c, http.StatusOK, gin.H{"subjects": subjects})
}
