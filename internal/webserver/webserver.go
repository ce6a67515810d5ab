// Package webserver wires the REST, GraphQL and websocket surfaces onto a
// single echo instance.
package webserver

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v4"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/funkostack/funkostore/config"
	"github.com/funkostack/funkostore/internal/domain"
	"github.com/funkostack/funkostore/internal/graphapi"
	"github.com/funkostack/funkostore/internal/notify"
	"github.com/funkostack/funkostore/internal/service"
	"github.com/funkostack/funkostore/internal/storage"
)

// TokenClaims is the JWT payload issued on signin.
type TokenClaims struct {
	UserID   int64  `json:"uid"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type WebServer struct {
	e           *echo.Echo
	cfg         *config.AppConfig
	funkos      *service.FunkoService
	categories  *service.CategoryService
	users       *service.UserService
	files       storage.Store
	funkoHub    *notify.Hub
	categoryHub *notify.Hub
	gql         *graphapi.Handler
	bridge      *graphapi.SubscriptionBridge
	errNode     *snowflake.Node
}

func New(
	cfg *config.AppConfig,
	funkos *service.FunkoService,
	categories *service.CategoryService,
	users *service.UserService,
	files storage.Store,
	funkoHub *notify.Hub,
	categoryHub *notify.Hub,
	gql *graphapi.Handler,
	bridge *graphapi.SubscriptionBridge,
) (*WebServer, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, err
	}

	s := &WebServer{
		e:           echo.New(),
		cfg:         cfg,
		funkos:      funkos,
		categories:  categories,
		users:       users,
		files:       files,
		funkoHub:    funkoHub,
		categoryHub: categoryHub,
		gql:         gql,
		bridge:      bridge,
		errNode:     node,
	}
	s.e.HideBanner = true
	s.e.HTTPErrorHandler = s.httpErrorHandler
	s.e.Use(middleware.Recover())
	s.e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI: true, LogStatus: true, LogMethod: true, LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			zap.L().Debug("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency))
			return nil
		},
	}))

	s.initRoutes()
	return s, nil
}

func (s *WebServer) jwtMiddleware() echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(s.cfg.Web.Secret),
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(TokenClaims)
		},
	})
}

// graphqlIdentity parses an optional bearer token and carries the caller
// identity into the resolver context. Queries stay anonymous; mutation
// resolvers enforce the ADMIN role themselves. Invalid tokens are treated
// as anonymous.
func (s *WebServer) graphqlIdentity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		auth := c.Request().Header.Get(echo.HeaderAuthorization)
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) {
			return next(c)
		}
		claims := new(TokenClaims)
		token, err := jwt.ParseWithClaims(strings.TrimPrefix(auth, prefix), claims,
			func(t *jwt.Token) (interface{}, error) {
				if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
					return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
				}
				return []byte(s.cfg.Web.Secret), nil
			})
		if err == nil && token.Valid {
			ctx := graphapi.WithIdentity(c.Request().Context(), graphapi.Identity{
				UserID:   claims.UserID,
				Username: claims.Username,
				Role:     claims.Role,
			})
			c.SetRequest(c.Request().WithContext(ctx))
		}
		return next(c)
	}
}

// adminOnly requires an authenticated ADMIN; must run after the JWT
// middleware.
func adminOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := c.Get("user").(*jwt.Token)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
		}
		claims, ok := token.Claims.(*TokenClaims)
		if !ok || claims.Role != domain.RoleAdmin {
			return echo.NewHTTPError(http.StatusForbidden, "admin role required")
		}
		return next(c)
	}
}

func (s *WebServer) initRoutes() {
	jwtmw := s.jwtMiddleware()

	s.e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	auth := s.e.Group("/api/auth")
	auth.POST("/signup", s.signup)
	auth.POST("/signin", s.signin)

	users := s.e.Group("/api/users", jwtmw)
	users.GET("/me", s.currentUser)
	users.DELETE("/:id", s.deleteUser, adminOnly)

	funkos := s.e.Group("/api/funkos")
	funkos.GET("", s.listFunkos)
	funkos.GET("/latest", s.latestFunkos)
	funkos.GET("/:id", s.getFunko)
	funkos.POST("", s.createFunko, jwtmw, adminOnly)
	funkos.PUT("/:id", s.updateFunko, jwtmw, adminOnly)
	funkos.DELETE("/:id", s.deleteFunko, jwtmw, adminOnly)

	categories := s.e.Group("/api/categoria")
	categories.GET("", s.listCategories)
	categories.GET("/:id", s.getCategory)
	categories.GET("/nombre/:nombre", s.getCategoryByName)
	categories.POST("", s.createCategory, jwtmw, adminOnly)
	categories.PUT("/:id", s.updateCategory, jwtmw, adminOnly)
	categories.DELETE("/:id", s.deleteCategory, jwtmw, adminOnly)

	files := s.e.Group("/api/files")
	files.GET("/download/:name", s.downloadFile)
	files.GET("/url/:name", s.fileURL)

	s.e.Static("/uploads", filepath.Clean(s.cfg.Storage.Dir))

	s.e.GET("/ws/funkos", s.wsHandler(s.funkoHub))
	s.e.GET("/ws/categorias", s.wsHandler(s.categoryHub))

	s.e.POST("/graphql", s.gql.Handle, s.graphqlIdentity)
	s.e.GET("/graphql/subscriptions", s.subscriptionsHandler)
}

// issueToken signs a bearer token for the user profile.
func (s *WebServer) issueToken(user *domain.User) (string, error) {
	hours := s.cfg.Web.TokenHours
	if hours <= 0 {
		hours = 24
	}
	claims := &TokenClaims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(hours) * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.Web.Secret))
}

func (s *WebServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Web.Host, s.cfg.Web.Port)
	zap.L().Info("web server listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *WebServer) Stop(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}
