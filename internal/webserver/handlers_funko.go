package webserver

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/funkostack/funkostore/internal/service"
)

type pagedResponse struct {
	Data     interface{} `json:"data"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

func paged(c echo.Context, data interface{}, total int64, page, pageSize int) error {
	return c.JSON(http.StatusOK, pagedResponse{Data: data, Total: total, Page: page, PageSize: pageSize})
}

func parsePagination(c echo.Context) (int, int) {
	page := 1
	if p, err := strconv.Atoi(c.QueryParam("page")); err == nil && p > 0 {
		page = p
	}
	pageSize := 20
	if ps, err := strconv.Atoi(c.QueryParam("pageSize")); err == nil && ps > 0 && ps <= 500 {
		pageSize = ps
	}
	return page, pageSize
}

func parsePrice(c echo.Context, name string) *float64 {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}

func (s *WebServer) listFunkos(c echo.Context) error {
	page, pageSize := parsePagination(c)
	filter := service.FunkoFilter{
		Query:     c.QueryParam("q"),
		Category:  c.QueryParam("categoria"),
		MinPrice:  parsePrice(c, "minPrice"),
		MaxPrice:  parsePrice(c, "maxPrice"),
		SortField: c.QueryParam("sort"),
		SortOrder: c.QueryParam("order"),
		Page:      page,
		PageSize:  pageSize,
	}
	rows, total, err := s.funkos.List(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return paged(c, rows, total, page, pageSize)
}

func (s *WebServer) latestFunkos(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	rows, err := s.funkos.Latest(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

func (s *WebServer) getFunko(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return service.Validationf("invalid funko id %q", c.Param("id"))
	}
	funko, err := s.funkos.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, funko)
}

// funkoInput reads the multipart form shared by create and update. The
// file part is optional; its absence is not an error.
func (s *WebServer) funkoInput(c echo.Context) (name string, price float64, category string, file *service.FileUpload, err error) {
	name = strings.TrimSpace(c.FormValue("name"))
	category = strings.TrimSpace(c.FormValue("categoria"))
	price, convErr := strconv.ParseFloat(strings.TrimSpace(c.FormValue("price")), 64)
	if convErr != nil {
		return "", 0, "", nil, service.Validationf("invalid price %q", c.FormValue("price"))
	}

	fh, fhErr := c.FormFile("file")
	if fhErr != nil {
		if fhErr == http.ErrMissingFile {
			return name, price, category, nil, nil
		}
		// no multipart body at all also means no file
		return name, price, category, nil, nil
	}
	src, openErr := fh.Open()
	if openErr != nil {
		return "", 0, "", nil, service.Storagef(openErr, "open uploaded file")
	}
	c.Response().After(func() { _ = src.Close() })
	return name, price, category, &service.FileUpload{Name: fh.Filename, Data: src}, nil
}

func (s *WebServer) createFunko(c echo.Context) error {
	name, price, category, file, err := s.funkoInput(c)
	if err != nil {
		return err
	}
	funko, err := s.funkos.Create(c.Request().Context(), service.CreateFunkoInput{
		Name:     name,
		Price:    price,
		Category: category,
		File:     file,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, funko)
}

func (s *WebServer) updateFunko(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return service.Validationf("invalid funko id %q", c.Param("id"))
	}
	name, price, category, file, err := s.funkoInput(c)
	if err != nil {
		return err
	}
	funko, err := s.funkos.Update(c.Request().Context(), id, service.UpdateFunkoInput{
		Name:     name,
		Price:    price,
		Category: category,
		File:     file,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, funko)
}

func (s *WebServer) deleteFunko(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return service.Validationf("invalid funko id %q", c.Param("id"))
	}
	if err := s.funkos.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
