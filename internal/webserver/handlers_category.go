package webserver

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/funkostack/funkostore/internal/service"
)

type categoryPayload struct {
	Name string `json:"name" form:"name"`
}

func (s *WebServer) listCategories(c echo.Context) error {
	rows, err := s.categories.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

func (s *WebServer) getCategory(c echo.Context) error {
	category, err := s.categories.FindByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, category)
}

func (s *WebServer) getCategoryByName(c echo.Context) error {
	category, err := s.categories.FindByName(c.Request().Context(), c.Param("nombre"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, category)
}

func (s *WebServer) createCategory(c echo.Context) error {
	var payload categoryPayload
	if err := c.Bind(&payload); err != nil {
		return service.Validationf("unable to parse category payload")
	}
	category, err := s.categories.Create(c.Request().Context(), strings.TrimSpace(payload.Name))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, category)
}

func (s *WebServer) updateCategory(c echo.Context) error {
	var payload categoryPayload
	if err := c.Bind(&payload); err != nil {
		return service.Validationf("unable to parse category payload")
	}
	category, err := s.categories.Update(c.Request().Context(), c.Param("id"), strings.TrimSpace(payload.Name))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, category)
}

func (s *WebServer) deleteCategory(c echo.Context) error {
	if err := s.categories.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
