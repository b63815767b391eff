package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/softwarepar/softwarepar-backend/internal/dto"
	"github.com/softwarepar/softwarepar-backend/internal/http/handlers/common"
	"github.com/softwarepar/softwarepar-backend/internal/service"
)

// ProjectHandler предоставляет HTTP слой для проектов, таймлайна,
// сообщений и файлов проекта.
type ProjectHandler struct {
	projects *service.ProjectService
	stages   *service.StageService
}

// NewProjectHandler создаёт хэндлер.
func NewProjectHandler(projects *service.ProjectService, stages *service.StageService) *ProjectHandler {
	return &ProjectHandler{projects: projects, stages: stages}
}

// Create обрабатывает POST /projects. Только администратор.
func (h *ProjectHandler) Create(c *gin.Context) {
	var req struct {
		Name        string  `json:"name" binding:"required"`
		Description *string `json:"description"`
		Price       float64 `json:"price" binding:"required,gt=0"`
		ClientID    string  `json:"client_id" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		common.RespondBadRequest(c, "неверный client_id")
		return
	}

	project, err := h.projects.CreateProject(c.Request.Context(), service.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		ClientID:    clientID,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, project)
}

// Get обрабатывает GET /projects/:id. Отдаёт проект вместе с таймлайном
// и этапами оплаты.
func (h *ProjectHandler) Get(c *gin.Context) {
	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)

	project, err := h.projects.GetProject(c.Request.Context(), projectID, userID, role)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	timeline, err := h.projects.ListTimeline(c.Request.Context(), projectID, userID, role)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	stages, err := h.stages.ListStages(c.Request.Context(), projectID, userID, role)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewProjectDetailResponse(project, timeline, stages))
}

// List обрабатывает GET /projects. Администратор видит все проекты,
// клиент только свои.
func (h *ProjectHandler) List(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)

	limit, offset := common.GetPagination(c)

	projects, err := h.projects.ListProjects(c.Request.Context(), userID, role, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// Update обрабатывает PUT /projects/:id. Только администратор.
func (h *ProjectHandler) Update(c *gin.Context) {
	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req struct {
		Name         *string `json:"name"`
		Description  *string `json:"description"`
		Status       *string `json:"status"`
		StartDate    *string `json:"start_date"`
		DeliveryDate *string `json:"delivery_date"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	project, err := h.projects.UpdateProject(c.Request.Context(), projectID, service.UpdateProjectInput{
		Name:         req.Name,
		Description:  req.Description,
		Status:       req.Status,
		StartDate:    req.StartDate,
		DeliveryDate: req.DeliveryDate,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, project)
}

// Delete обрабатывает DELETE /projects/:id. Только администратор.
func (h *ProjectHandler) Delete(c *gin.Context) {
	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.projects.DeleteProject(c.Request.Context(), projectID); err != nil {
		common.RespondAppError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "проект удалён", nil)
}

// SetProgress обрабатывает PUT /projects/:id/progress. Только администратор.
// Ручная установка прогресса проходит те же разблокировки этапов, что и
// пересчёт по таймлайну.
func (h *ProjectHandler) SetProgress(c *gin.Context) {
	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req struct {
		Progress *int `json:"progress" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "progress обязателен")
		return
	}

	project, err := h.projects.SetProgress(c.Request.Context(), projectID, *req.Progress)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, project)
}

// SendMessage обрабатывает POST /projects/:id/messages.
func (h *ProjectHandler) SendMessage(c *gin.Context) {
	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)

	var req struct {
		Message string `json:"message" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "message обязателен")
		return
	}

	message, err := h.projects.SendMessage(c.Request.Context(), projectID, userID, role, req.Message)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, message)
}

// ListMessages обрабатывает GET /projects/:id/messages.
func (h *ProjectHandler) ListMessages(c *gin.Context) {
	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)

	messages, err := h.projects.ListMessages(c.Request.Context(), projectID, userID, role)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// UploadFile обрабатывает POST /projects/:id/files (multipart/form-data).
func (h *ProjectHandler) UploadFile(c *gin.Context) {
	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		common.RespondBadRequest(c, "файл обязателен")
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		common.RespondBadRequest(c, "не удалось прочитать файл")
		return
	}
	defer src.Close()

	file, err := h.projects.UploadFile(c.Request.Context(), projectID, userID, role, fileHeader.Filename, src)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, file)
}

// ListFiles обрабатывает GET /projects/:id/files.
func (h *ProjectHandler) ListFiles(c *gin.Context) {
	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)

	files, err := h.projects.ListFiles(c.Request.Context(), projectID, userID, role)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"files": files})
}

// DeleteFile обрабатывает DELETE /files/:id. Только администратор.
func (h *ProjectHandler) DeleteFile(c *gin.Context) {
	fileID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.projects.DeleteFile(c.Request.Context(), fileID); err != nil {
		common.RespondAppError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "файл удалён", nil)
}

// AddTimelineItem обрабатывает POST /projects/:id/timeline. Только администратор.
func (h *ProjectHandler) AddTimelineItem(c *gin.Context) {
	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req struct {
		Title       string  `json:"title" binding:"required"`
		Description *string `json:"description"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	item, err := h.projects.AddTimelineItem(c.Request.Context(), projectID, req.Title, req.Description)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, item)
}

// ListTimeline обрабатывает GET /projects/:id/timeline.
func (h *ProjectHandler) ListTimeline(c *gin.Context) {
	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)

	timeline, err := h.projects.ListTimeline(c.Request.Context(), projectID, userID, role)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"timeline": timeline})
}

// UpdateTimelineStatus обрабатывает PUT /timeline/:id/status. Только
// администратор. Завершение пункта пересчитывает прогресс проекта и
// может открыть этапы оплаты.
func (h *ProjectHandler) UpdateTimelineStatus(c *gin.Context) {
	itemID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "status обязателен")
		return
	}

	item, err := h.projects.UpdateTimelineStatus(c.Request.Context(), itemID, req.Status)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

// DeleteTimelineItem обрабатывает DELETE /timeline/:id. Только администратор.
func (h *ProjectHandler) DeleteTimelineItem(c *gin.Context) {
	itemID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.projects.DeleteTimelineItem(c.Request.Context(), itemID); err != nil {
		common.RespondAppError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "пункт таймлайна удалён", nil)
}
