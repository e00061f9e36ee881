package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"sigs.k8s.io/controller-runtime/pkg/client"

	consolev1 "github.com/anvil-platform/gateway-console/api/v1"
	"github.com/anvil-platform/gateway-console/controllers"
	"github.com/anvil-platform/gateway-console/internal/apperr"
	"github.com/anvil-platform/gateway-console/internal/gateway"
)

// defaultNamespace is used for created objects that carry no namespace.
const defaultNamespace = "default"

func (s *Server) resourceRoutes(g *gin.RouterGroup, rc *controllers.ResourceController) {
	h := resourceHandlers{server: s, rc: rc}
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:namespace/:name", h.get)
	g.PUT("/:namespace/:name", h.update)
	g.DELETE("/:namespace/:name", h.remove)
}

type resourceHandlers struct {
	server *Server
	rc     *controllers.ResourceController
}

func (h resourceHandlers) list(c *gin.Context) {
	items, err := h.rc.List(c.Request.Context(), c.Query("namespace"))
	if err != nil {
		h.server.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, consolev1.ResourceList{Kind: h.rc.Kind(), Items: items})
}

func (h resourceHandlers) get(c *gin.Context) {
	s, err := h.rc.Get(c.Request.Context(), c.Param("namespace"), c.Param("name"))
	if err != nil {
		h.server.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h resourceHandlers) create(c *gin.Context) {
	obj, err := h.decode(c)
	if err != nil {
		h.server.writeError(c, err)
		return
	}
	if obj.GetNamespace() == "" {
		obj.SetNamespace(defaultNamespace)
	}
	s, err := h.rc.Create(c.Request.Context(), obj)
	if err != nil {
		h.server.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

// update takes the namespace and name from the path. A body naming a different
// object is rejected.
func (h resourceHandlers) update(c *gin.Context) {
	obj, err := h.decode(c)
	if err != nil {
		h.server.writeError(c, err)
		return
	}
	namespace, name := c.Param("namespace"), c.Param("name")
	if (obj.GetNamespace() != "" && obj.GetNamespace() != namespace) || (obj.GetName() != "" && obj.GetName() != name) {
		h.server.writeError(c, apperr.Validation("body refers to %s/%s but the path names %s/%s",
			obj.GetNamespace(), obj.GetName(), namespace, name))
		return
	}
	obj.SetNamespace(namespace)
	obj.SetName(name)
	s, err := h.rc.Update(c.Request.Context(), obj)
	if err != nil {
		h.server.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// remove replies with the reference of the deleted resource.
func (h resourceHandlers) remove(c *gin.Context) {
	ref := consolev1.ResourceRef{Kind: h.rc.Kind(), Namespace: c.Param("namespace"), Name: c.Param("name")}
	if err := h.rc.Delete(c.Request.Context(), ref.Namespace, ref.Name); err != nil {
		h.server.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ref)
}

func (h resourceHandlers) decode(c *gin.Context) (client.Object, error) {
	obj, err := gateway.NewObject(h.rc.Kind())
	if err != nil {
		return nil, err
	}
	if err := c.ShouldBindJSON(obj); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "malformed %s body", h.rc.Kind())
	}
	return obj, nil
}

func (s *Server) getTopology(c *gin.Context) {
	graph, err := s.console.Topology(c.Request.Context(), c.Query("namespace"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, graph)
}
