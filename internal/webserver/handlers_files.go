package webserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/funkostack/funkostore/internal/service"
)

func (s *WebServer) downloadFile(c echo.Context) error {
	name := c.Param("name")
	f, err := s.files.Open(name)
	if err != nil {
		return service.NotFoundf("file %q not found", name)
	}
	defer f.Close()
	return c.Stream(http.StatusOK, "application/octet-stream", f)
}

func (s *WebServer) fileURL(c echo.Context) error {
	name := c.Param("name")
	return c.JSON(http.StatusOK, map[string]string{
		"name": name,
		"url":  s.files.URL(name),
	})
}
