package webserver

import (
	"net/http"
	"strconv"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/funkostack/funkostore/internal/domain"
	"github.com/funkostack/funkostore/internal/service"
)

type signupPayload struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type signinPayload struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

func (s *WebServer) signup(c echo.Context) error {
	var payload signupPayload
	if err := c.Bind(&payload); err != nil {
		return service.Validationf("unable to parse signup payload")
	}
	user, err := s.users.Signup(c.Request().Context(), service.SignupInput{
		Username: payload.Username,
		Email:    payload.Email,
		Password: payload.Password,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, user)
}

func (s *WebServer) signin(c echo.Context) error {
	var payload signinPayload
	if err := c.Bind(&payload); err != nil {
		return service.Validationf("unable to parse signin payload")
	}
	user, err := s.users.Signin(c.Request().Context(), payload.Username, payload.Password)
	if err != nil {
		return err
	}
	token, err := s.issueToken(user)
	if err != nil {
		return service.Internalf(err, "sign token")
	}
	return c.JSON(http.StatusOK, authResponse{Token: token, User: user})
}

// currentUser returns the profile behind the bearer token.
func (s *WebServer) currentUser(c echo.Context) error {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}
	claims, ok := token.Claims.(*TokenClaims)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}
	user, err := s.users.Get(c.Request().Context(), claims.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

func (s *WebServer) deleteUser(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return service.Validationf("invalid user id %q", c.Param("id"))
	}
	if err := s.users.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
