package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/modelgate/pkg/layout"
	"github.com/samcharles93/modelgate/pkg/modelloader"
)

type Server struct {
	registry *Registry
	// allowLoad enables POST and DELETE on /v1/models.
	allowLoad bool
}

type ServerOption func(*Server)

// WithModelManagement lets clients load and unload models over HTTP.
func WithModelManagement(enabled bool) ServerOption {
	return func(s *Server) { s.allowLoad = enabled }
}

func NewServer(registry *Registry, opts ...ServerOption) *Server {
	if registry == nil {
		registry = NewRegistry(nil)
	}
	s := &Server{registry: registry}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/v1/models", s.handleListModels)
	e.GET("/v1/models/:name", s.handleGetModel)
	e.PUT("/v1/models/:name/inputs/:index/layout", s.handleSetInputLayout)
	e.PUT("/v1/models/:name/outputs/:index/layout", s.handleSetOutputLayout)
	e.POST("/v1/models/:name/stack", s.handleAdjustStack)

	if s.allowLoad {
		e.POST("/v1/models", s.handleLoadModel)
		e.DELETE("/v1/models/:name", s.handleDeleteModel)
	}
}

func (s *Server) handleListModels(c *echo.Context) error {
	models, err := s.registry.List()
	if err != nil {
		return writeLoaderError(c, err)
	}
	return c.JSON(http.StatusOK, ModelList{Object: "list", Data: models})
}

func (s *Server) handleGetModel(c *echo.Context) error {
	detail, err := s.registry.Describe(c.Param("name"))
	if err != nil {
		return writeLoaderError(c, err)
	}
	return c.JSON(http.StatusOK, detail)
}

func (s *Server) handleLoadModel(c *echo.Context) error {
	req, err := decodeJSON[LoadModelRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if req.Path == "" {
		return writeBadRequest(c, "path is required")
	}
	if req.Function == "" {
		return writeBadRequest(c, "function is required")
	}
	if req.Name == "" {
		req.Name = ModelName(req.Path)
	}
	if err := s.registry.Load(req.Name, req.Path, req.Function); err != nil {
		return writeLoaderError(c, err)
	}
	detail, err := s.registry.Describe(req.Name)
	if err != nil {
		return writeLoaderError(c, err)
	}
	return c.JSON(http.StatusCreated, detail)
}

func (s *Server) handleDeleteModel(c *echo.Context) error {
	name := c.Param("name")
	if !s.registry.Remove(name) {
		return writeNotFound(c, fmt.Sprintf("model %q not found", name))
	}
	return c.JSON(http.StatusOK, DeleteModelResponse{Name: name, Object: "model", Deleted: true})
}

func (s *Server) handleSetInputLayout(c *echo.Context) error {
	return s.setLayout(c, "input", (*modelloader.ModelLoader).SetHostInputLayout, (*modelloader.ModelLoader).HostInputLayout)
}

func (s *Server) handleSetOutputLayout(c *echo.Context) error {
	return s.setLayout(c, "output", (*modelloader.ModelLoader).SetHostOutputLayout, (*modelloader.ModelLoader).HostOutputLayout)
}

func (s *Server) setLayout(
	c *echo.Context,
	direction string,
	set func(*modelloader.ModelLoader, layout.DataLayout, int) error,
	get func(*modelloader.ModelLoader, int) layout.DataLayout,
) error {
	name := c.Param("name")
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return writeError(c, http.StatusBadRequest, "invalid_request_error", fmt.Sprintf("index %q is not an integer", c.Param("index")), "index", "")
	}
	req, err := decodeJSON[LayoutRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	var host layout.DataLayout
	err = s.registry.Update(name, func(m *modelloader.ModelLoader) error {
		if err := set(m, layout.DataLayout{DType: req.DType, Order: req.Order}, index); err != nil {
			return err
		}
		host = get(m, index)
		return nil
	})
	if err != nil {
		return writeLoaderError(c, err)
	}
	return c.JSON(http.StatusOK, LayoutResponse{
		Model:     name,
		Direction: direction,
		Index:     index,
		Host:      host,
	})
}

func (s *Server) handleAdjustStack(c *echo.Context) error {
	name := c.Param("name")
	var changed bool
	err := s.registry.Update(name, func(m *modelloader.ModelLoader) error {
		var err error
		changed, err = m.AdjustStackMemory()
		return err
	})
	if err != nil {
		return writeLoaderError(c, err)
	}
	return c.JSON(http.StatusOK, StackResponse{Model: name, Changed: changed})
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}
