// Package api serves a tables.Store over HTTP with the same conventions the
// tables.Client speaks: /rest/v1/<table>, col=op.value filters, order,
// select, limit and on_conflict parameters.
package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/celerix-dev/celerix-finsync/pkg/tables"
)

type Handler struct {
	Store tables.Store
	// APIKey, when set, must be sent as the apikey header or bearer token.
	APIKey string
	// OnChange is called after every successful write.
	OnChange func(table string)
}

// Register mounts the table routes on r.
func (h *Handler) Register(r gin.IRouter) {
	g := r.Group(strings.TrimSuffix(tables.RestPrefix, "/"))
	g.Use(h.RequireAPIKey)
	{
		g.GET("/:table", h.Fetch)
		g.POST("/:table", h.Insert)
		g.PATCH("/:table", h.Update)
		g.DELETE("/:table", h.Delete)
	}
}

// NewRouter returns a gin engine serving h plus a health check.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	h.Register(r)
	return r
}

// RequireAPIKey rejects requests without the configured key.
func (h *Handler) RequireAPIKey(c *gin.Context) {
	if h.APIKey == "" {
		c.Next()
		return
	}
	key := c.GetHeader("apikey")
	if key == "" {
		key = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}
	if key != h.APIKey {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid api key"})
		return
	}
	c.Next()
}

func (h *Handler) Fetch(c *gin.Context) {
	q, err := tables.ParseQuery(c.Request.URL.Query())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	rows, err := h.Store.Fetch(c.Request.Context(), c.Param("table"), q, bearer(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(rows))
}

func (h *Handler) Insert(c *gin.Context) {
	rows, err := bindRows(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	table := c.Param("table")
	out, err := h.Store.Insert(c.Request.Context(), table, c.Query("on_conflict"), rows, bearer(c))
	if err != nil {
		writeError(c, err)
		return
	}
	h.changed(table)
	c.JSON(http.StatusCreated, nonNil(out))
}

func (h *Handler) Update(c *gin.Context) {
	q, err := tables.ParseQuery(c.Request.URL.Query())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if len(q.Filters) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "update requires a filter"})
		return
	}
	var patch tables.Row
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	table := c.Param("table")
	out, err := h.Store.Update(c.Request.Context(), table, q, patch, bearer(c))
	if err != nil {
		writeError(c, err)
		return
	}
	h.changed(table)
	c.JSON(http.StatusOK, nonNil(out))
}

func (h *Handler) Delete(c *gin.Context) {
	q, err := tables.ParseQuery(c.Request.URL.Query())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if len(q.Filters) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "delete requires a filter"})
		return
	}
	table := c.Param("table")
	if err := h.Store.Delete(c.Request.Context(), table, q, bearer(c)); err != nil {
		writeError(c, err)
		return
	}
	h.changed(table)
	c.Status(http.StatusNoContent)
}

func (h *Handler) changed(table string) {
	if h.OnChange != nil {
		h.OnChange(table)
	}
}

// bindRows accepts either a single object or an array of objects.
func bindRows(c *gin.Context) ([]tables.Row, error) {
	var raw any
	if err := c.ShouldBindJSON(&raw); err != nil {
		return nil, err
	}
	switch v := raw.(type) {
	case map[string]any:
		return []tables.Row{v}, nil
	case []any:
		rows := make([]tables.Row, 0, len(v))
		for _, item := range v {
			row, ok := item.(map[string]any)
			if !ok {
				return nil, errors.New("body must contain only objects")
			}
			rows = append(rows, row)
		}
		return rows, nil
	}
	return nil, errors.New("body must be an object or an array of objects")
}

func bearer(c *gin.Context) string {
	return strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var re *tables.RemoteError
	if errors.As(err, &re) && re.Status != 0 {
		status = re.Status
	}
	c.JSON(status, gin.H{"message": err.Error()})
}

func nonNil(rows []tables.Row) []tables.Row {
	if rows == nil {
		return []tables.Row{}
	}
	return rows
}
