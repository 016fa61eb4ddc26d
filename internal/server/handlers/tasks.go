package handlers

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/attachments"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/lookups"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/mw"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/resp"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/tasks"
)

type TaskStore interface {
	List(ctx context.Context) ([]tasks.Task, error)
	ByMember(ctx context.Context, memberID int64) ([]tasks.Task, error)
	Get(ctx context.Context, id int64) (*tasks.Task, error)
	Create(ctx context.Context, p tasks.Patch, files []attachments.Stored, actor string) (int64, error)
	Update(ctx context.Context, id int64, p tasks.Patch, files []attachments.Stored, actor string) error
}

type TasksHandler struct {
	logger  *zap.Logger
	tasks   TaskStore
	uploads Uploader
	files   AttachmentStore
	lookups Lookups
}

func NewTasksHandler(logger *zap.Logger, t TaskStore, uploads Uploader, files AttachmentStore, lk Lookups) *TasksHandler {
	return &TasksHandler{logger: logger, tasks: t, uploads: uploads, files: files, lookups: lk}
}

func (h *TasksHandler) Register(g gin.IRoutes) {
	g.GET("/statuses", lookupList(h.logger, h.lookups, lookups.TaskStatuses))
	g.GET("/products", lookupList(h.logger, h.lookups, lookups.Products))
	g.GET("/", h.List)
	g.GET("/bymember/:id", h.ByMember)
	g.GET("/bymember/:id/export", h.Export)
	g.GET("/:id", h.Get)
	g.GET("/:id/attachments", func(c *gin.Context) { listAttachments(c, h.logger, h.files, attachments.Task.OwnerType) })
	g.POST("/", h.Create)
	g.PUT("/:id", h.Update)
}

func (h *TasksHandler) List(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.tasks.List(ctx)
	if err != nil {
		fail(c, h.logger, "list tasks", err)
		return
	}
	resp.OK(c, list)
}

func (h *TasksHandler) ByMember(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.tasks.ByMember(ctx, id)
	if err != nil {
		fail(c, h.logger, "tasks by member", err)
		return
	}
	resp.OK(c, list)
}

// GET /bymember/:id/export downloads the member's tasks as CSV.
func (h *TasksHandler) Export(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.tasks.ByMember(ctx, id)
	if err != nil {
		fail(c, h.logger, "export tasks", err)
		return
	}
	var buf bytes.Buffer
	if err := tasks.WriteCSV(&buf, list); err != nil {
		fail(c, h.logger, "export tasks", err)
		return
	}
	name := fmt.Sprintf("tasks_member_%d_%s.csv", id, time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *TasksHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	t, err := h.tasks.Get(ctx, id)
	if err != nil {
		fail(c, h.logger, "get task", err)
		return
	}
	resp.OK(c, t)
}

// bindTask reads plain form fields (multipart) or JSON.
func bindTask(c *gin.Context, p *tasks.Patch) ([]*multipart.FileHeader, error) {
	if err := c.ShouldBind(p); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, err
	}
	return form.File["attachments"], nil
}

func (h *TasksHandler) Create(c *gin.Context) {
	var p tasks.Patch
	files, err := bindTask(c, &p)
	if err != nil {
		badPayload(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	stored, err := h.uploads.Save(ctx, attachments.Task, files, mw.Actor(c))
	if err != nil {
		fail(c, h.logger, "create task", err)
		return
	}
	id, err := h.tasks.Create(ctx, p, stored, mw.Actor(c))
	if err != nil {
		h.uploads.Cleanup(ctx, attachments.Keys(stored))
		fail(c, h.logger, "create task", err)
		return
	}
	resp.Created(c, "Task created.", id)
}

func (h *TasksHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var p tasks.Patch
	files, err := bindTask(c, &p)
	if err != nil {
		badPayload(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	stored, err := h.uploads.Save(ctx, attachments.Task, files, mw.Actor(c))
	if err != nil {
		fail(c, h.logger, "update task", err)
		return
	}
	if err := h.tasks.Update(ctx, id, p, stored, mw.Actor(c)); err != nil {
		h.uploads.Cleanup(ctx, attachments.Keys(stored))
		fail(c, h.logger, "update task", err)
		return
	}
	resp.Message(c, "Task updated.")
}
