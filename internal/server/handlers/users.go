package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/resp"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/users"
)

// UsersHandler is the admin user management surface.
type UsersHandler struct {
	logger *zap.Logger
	users  UserStore
}

func NewUsersHandler(logger *zap.Logger, users UserStore) *UsersHandler {
	return &UsersHandler{logger: logger, users: users}
}

func (h *UsersHandler) List(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.users.List(ctx)
	if err != nil {
		fail(c, h.logger, "list users", err)
		return
	}
	resp.OK(c, list)
}

func (h *UsersHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.users.FindByID(ctx, id)
	if err != nil {
		fail(c, h.logger, "get user", err)
		return
	}
	resp.OK(c, u)
}

func (h *UsersHandler) Rights(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	rights, err := h.users.Rights(ctx)
	if err != nil {
		fail(c, h.logger, "user rights", err)
		return
	}
	resp.OK(c, rights)
}

func (h *UsersHandler) Create(c *gin.Context) {
	var p users.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		badPayload(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	id, err := h.users.Create(ctx, p)
	if err != nil {
		fail(c, h.logger, "create user", err)
		return
	}
	resp.Created(c, "User created.", id)
}

func (h *UsersHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var p users.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		badPayload(c, err)
		return
	}
	// passwords change through the reset or change-password flows only
	p.Password = nil
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.users.Update(ctx, id, p); err != nil {
		fail(c, h.logger, "update user", err)
		return
	}
	resp.Message(c, "User updated.")
}

func (h *UsersHandler) Deactivate(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.users.Deactivate(ctx, id); err != nil {
		fail(c, h.logger, "deactivate user", err)
		return
	}
	resp.Message(c, "User deactivated.")
}
