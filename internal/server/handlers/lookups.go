package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/lookups"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/resp"
)

// Lookups is implemented by lookups.Service (redis cached).
type Lookups interface {
	List(ctx context.Context, category string) ([]lookups.Item, error)
}

// lookupList serves one reference-data category as a dropdown list.
func lookupList(logger *zap.Logger, src Lookups, category string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := reqCtx(c)
		defer cancel()
		items, err := src.List(ctx, category)
		if err != nil {
			fail(c, logger, "lookup "+category, err)
			return
		}
		resp.OK(c, items)
	}
}
