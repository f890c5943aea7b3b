package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/codesync/codesync-server/internal/store"
)

// FileHandlers provides HTTP handlers for file endpoints.
type FileHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewFileHandlers creates a new file handlers instance.
func NewFileHandlers(st store.Store, logger *zerolog.Logger) *FileHandlers {
	return &FileHandlers{
		store: st,
		log:   logger,
	}
}

// CreateFileRequest represents the create file request body.
type CreateFileRequest struct {
	Name     string `json:"name" binding:"required,min=1,max=255"`
	Path     string `json:"path"`
	Content  string `json:"content"`
	Language string `json:"language"`
}

// UpdateFileRequest represents the update file request body.
type UpdateFileRequest struct {
	Name     *string `json:"name"`
	Content  *string `json:"content"`
	Language *string `json:"language"`
}

// FileResponse represents a file in API responses.
type FileResponse struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	Path      string `json:"path"`
	Content   string `json:"content"`
	Language  string `json:"language"`
	CreatedBy int64  `json:"createdBy"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func fileResponse(f *store.File) FileResponse {
	return FileResponse{
		ID:        f.ID,
		ProjectID: f.ProjectID,
		Name:      f.Name,
		Path:      f.Path,
		Content:   f.Content,
		Language:  f.Language,
		CreatedBy: f.CreatedBy,
		CreatedAt: f.CreatedAt.Format(time.RFC3339),
		UpdatedAt: f.UpdatedAt.Format(time.RFC3339),
	}
}

// editorRole reports whether the user may modify project content.
func (h *FileHandlers) editorRole(c *gin.Context, projectID string, uid int64) bool {
	role, ok, err := h.store.MemberRole(c.Request.Context(), projectID, uid)
	if err != nil {
		h.log.Error().Err(err).Str("project_id", projectID).Msg("failed to check membership")
		return false
	}
	return ok && (role == store.RoleOwner || role == store.RoleEditor)
}

// memberOrPublic reports whether the user may read project content.
func (h *FileHandlers) memberOrPublic(c *gin.Context, projectID string, uid int64) bool {
	project, err := h.store.GetProject(c.Request.Context(), projectID)
	if err != nil {
		return false
	}
	if project.IsPublic || project.OwnerID == uid {
		return true
	}
	_, ok, err := h.store.MemberRole(c.Request.Context(), projectID, uid)
	if err != nil {
		return false
	}
	return ok
}

// ListFiles handles listing a project's files.
// GET /api/projects/:id/files
func (h *FileHandlers) ListFiles(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	projectID := c.Param("id")
	if !h.memberOrPublic(c, projectID, uid) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a project member"})
		return
	}

	files, err := h.store.ListFiles(c.Request.Context(), projectID)
	if err != nil {
		h.log.Error().Err(err).Str("project_id", projectID).Msg("failed to list files")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]FileResponse, 0, len(files))
	for _, f := range files {
		response = append(response, fileResponse(f))
	}
	c.JSON(http.StatusOK, response)
}

// CreateFile handles file creation inside a project.
// POST /api/projects/:id/files
func (h *FileHandlers) CreateFile(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	projectID := c.Param("id")
	if !h.editorRole(c, projectID, uid) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not authorized to create files in this project"})
		return
	}

	var req CreateFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	file := &store.File{
		ProjectID: projectID,
		Name:      req.Name,
		Path:      req.Path,
		Content:   req.Content,
		Language:  req.Language,
		CreatedBy: uid,
	}
	if err := h.store.CreateFile(c.Request.Context(), file); err != nil {
		h.log.Error().Err(err).Str("project_id", projectID).Msg("failed to create file")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("file_id", file.ID).Str("project_id", projectID).Msg("file created")
	c.JSON(http.StatusCreated, fileResponse(file))
}

// GetFile handles fetching a single file.
// GET /api/files/:id
func (h *FileHandlers) GetFile(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	file, err := h.store.GetFile(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "file not found"})
		return
	}

	if !h.memberOrPublic(c, file.ProjectID, uid) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a project member"})
		return
	}

	c.JSON(http.StatusOK, fileResponse(file))
}

// UpdateFile handles renaming or editing a file.
// PUT /api/files/:id
func (h *FileHandlers) UpdateFile(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	file, err := h.store.GetFile(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "file not found"})
		return
	}

	if !h.editorRole(c, file.ProjectID, uid) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not authorized to edit files in this project"})
		return
	}

	var req UpdateFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if req.Name != nil {
		file.Name = *req.Name
	}
	if req.Content != nil {
		file.Content = *req.Content
	}
	if req.Language != nil {
		file.Language = *req.Language
	}

	if err := h.store.UpdateFile(c.Request.Context(), file); err != nil {
		h.log.Error().Err(err).Str("file_id", file.ID).Msg("failed to update file")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, fileResponse(file))
}

// DeleteFile handles deleting a file.
// DELETE /api/files/:id
func (h *FileHandlers) DeleteFile(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	file, err := h.store.GetFile(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "file not found"})
		return
	}

	if !h.editorRole(c, file.ProjectID, uid) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not authorized to delete files in this project"})
		return
	}

	if err := h.store.DeleteFile(c.Request.Context(), file.ID); err != nil {
		h.log.Error().Err(err).Str("file_id", file.ID).Msg("failed to delete file")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("file_id", file.ID).Msg("file deleted")
	c.Status(http.StatusNoContent)
}
