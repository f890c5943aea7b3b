package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/codesync/codesync-server/internal/store"
)

// ProjectHandlers provides HTTP handlers for project management endpoints.
type ProjectHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewProjectHandlers creates a new project handlers instance.
func NewProjectHandlers(st store.Store, logger *zerolog.Logger) *ProjectHandlers {
	return &ProjectHandlers{
		store: st,
		log:   logger,
	}
}

// CreateProjectRequest represents the create project request body.
type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=128"`
	Description string `json:"description"`
	Language    string `json:"language"`
	IsPublic    bool   `json:"isPublic"`
}

// UpdateProjectRequest represents the update project request body.
type UpdateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Language    *string `json:"language"`
	IsPublic    *bool   `json:"isPublic"`
}

// AddMemberRequest represents the add member request body.
type AddMemberRequest struct {
	Username string `json:"username" binding:"required"`
	Role     string `json:"role"`
}

// ProjectResponse represents a project in API responses.
type ProjectResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Language    string `json:"language"`
	IsPublic    bool   `json:"isPublic"`
	OwnerID     int64  `json:"ownerId"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

// MemberResponse represents a project member in API responses.
type MemberResponse struct {
	UserID  int64  `json:"userId"`
	Role    string `json:"role"`
	AddedAt string `json:"addedAt"`
}

func projectResponse(p *store.Project) ProjectResponse {
	return ProjectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Language:    p.Language,
		IsPublic:    p.IsPublic,
		OwnerID:     p.OwnerID,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   p.UpdatedAt.Format(time.RFC3339),
	}
}

// CreateProject handles project creation.
// POST /api/projects
func (h *ProjectHandlers) CreateProject(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create project request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	project := &store.Project{
		Name:        req.Name,
		Description: req.Description,
		Language:    req.Language,
		IsPublic:    req.IsPublic,
		OwnerID:     uid,
	}
	if err := h.store.CreateProject(c.Request.Context(), project); err != nil {
		h.log.Error().Err(err).Str("project_name", req.Name).Msg("failed to create project")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("project_id", project.ID).Int64("owner_id", uid).Msg("project created")
	c.JSON(http.StatusCreated, projectResponse(project))
}

// ListProjects handles listing the caller's projects.
// GET /api/projects
func (h *ProjectHandlers) ListProjects(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	projects, err := h.store.ListProjects(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list projects")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		response = append(response, projectResponse(p))
	}
	c.JSON(http.StatusOK, response)
}

// GetProject handles fetching a single project, members included.
// GET /api/projects/:id
func (h *ProjectHandlers) GetProject(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	project, err := h.store.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "project not found"})
		return
	}

	if !h.canAccess(c, project, uid) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a project member"})
		return
	}

	members, err := h.store.ListMembers(c.Request.Context(), project.ID)
	if err != nil {
		h.log.Error().Err(err).Str("project_id", project.ID).Msg("failed to list members")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	memberResp := make([]MemberResponse, 0, len(members))
	for _, m := range members {
		memberResp = append(memberResp, MemberResponse{
			UserID:  m.UserID,
			Role:    string(m.Role),
			AddedAt: m.AddedAt.Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"project": projectResponse(project),
		"members": memberResp,
	})
}

// UpdateProject handles updating project metadata. Owner only.
// PUT /api/projects/:id
func (h *ProjectHandlers) UpdateProject(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	project, err := h.store.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "project not found"})
		return
	}
	if project.OwnerID != uid {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "only the project owner can update the project"})
		return
	}

	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if req.Name != nil {
		project.Name = *req.Name
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	if req.Language != nil {
		project.Language = *req.Language
	}
	if req.IsPublic != nil {
		project.IsPublic = *req.IsPublic
	}

	if err := h.store.UpdateProject(c.Request.Context(), project); err != nil {
		h.log.Error().Err(err).Str("project_id", project.ID).Msg("failed to update project")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, projectResponse(project))
}

// DeleteProject handles deleting a project. Owner only.
// DELETE /api/projects/:id
func (h *ProjectHandlers) DeleteProject(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	project, err := h.store.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "project not found"})
		return
	}
	if project.OwnerID != uid {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "only the project owner can delete the project"})
		return
	}

	if err := h.store.DeleteProject(c.Request.Context(), project.ID); err != nil {
		h.log.Error().Err(err).Str("project_id", project.ID).Msg("failed to delete project")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("project_id", project.ID).Msg("project deleted")
	c.Status(http.StatusNoContent)
}

// AddMember adds a user to a project by username. Owner only.
// POST /api/projects/:id/members
func (h *ProjectHandlers) AddMember(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	project, err := h.store.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "project not found"})
		return
	}
	if project.OwnerID != uid {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "only the project owner can add members"})
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	user, err := h.store.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
		return
	}

	role := store.Role(req.Role)
	switch role {
	case store.RoleEditor, store.RoleViewer:
	case "":
		role = store.RoleEditor
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid role"})
		return
	}

	if err := h.store.AddMember(c.Request.Context(), project.ID, user.ID, role); err != nil {
		h.log.Error().Err(err).Str("project_id", project.ID).Int64("user_id", user.ID).Msg("failed to add member")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("project_id", project.ID).Int64("user_id", user.ID).Str("role", string(role)).Msg("member added")
	c.JSON(http.StatusCreated, MemberResponse{UserID: user.ID, Role: string(role), AddedAt: time.Now().UTC().Format(time.RFC3339)})
}

// RemoveMember removes a user from a project. Owner only; the owner itself
// cannot be removed.
// DELETE /api/projects/:id/members/:userId
func (h *ProjectHandlers) RemoveMember(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	project, err := h.store.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "project not found"})
		return
	}
	if project.OwnerID != uid {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "only the project owner can remove members"})
		return
	}

	var target struct {
		UserID int64 `uri:"userId" binding:"required"`
	}
	if err := c.ShouldBindUri(&target); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user id"})
		return
	}
	if target.UserID == project.OwnerID {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "cannot remove the project owner"})
		return
	}

	if err := h.store.RemoveMember(c.Request.Context(), project.ID, target.UserID); err != nil {
		h.log.Error().Err(err).Str("project_id", project.ID).Int64("user_id", target.UserID).Msg("failed to remove member")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *ProjectHandlers) canAccess(c *gin.Context, project *store.Project, uid int64) bool {
	if project.IsPublic || project.OwnerID == uid {
		return true
	}
	_, isMember, err := h.store.MemberRole(c.Request.Context(), project.ID, uid)
	if err != nil {
		h.log.Error().Err(err).Str("project_id", project.ID).Msg("failed to check membership")
		return false
	}
	return isMember
}
