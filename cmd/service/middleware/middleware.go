package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/filedepot/filedepot/app/core"
	v1 "github.com/filedepot/filedepot/app/logic/v1"
	"github.com/filedepot/filedepot/app/response"
	"github.com/filedepot/filedepot/pkg/errors"
	"github.com/filedepot/filedepot/pkg/i18n"
	"github.com/filedepot/filedepot/pkg/security"
)

func I18n() gin.HandlerFunc {
	var allowList []string
	for k := range i18n.ALLOW_LANG {
		allowList = append(allowList, k)
	}
	l := i18n.NewLocalizer(allowList...)

	return response.ProvideResponseLocalizer(l)
}

const AUTH_TOKEN_HEADER_KEY = "Authorization"

// Authorization 校验 Bearer token 并把 claims 注入请求上下文
func Authorization(core *core.Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Request.Header.Get(AUTH_TOKEN_HEADER_KEY)
		token := strings.TrimPrefix(raw, "Bearer ")
		if token == "" {
			response.APIError(c, errors.New("middleware.Authorization.Empty", i18n.ERROR_UNAUTHORIZED, nil).Code(http.StatusUnauthorized))
			return
		}

		claims, err := security.VerifyToken(token, []byte(core.Cfg().Security.JWTSecret))
		if err != nil {
			response.APIError(c, errors.New("middleware.Authorization.Verify", i18n.ERROR_INVALID_TOKEN, err).Code(http.StatusUnauthorized))
			return
		}

		c.Set(v1.TOKEN_CONTEXT_KEY, *claims)
		c.Set(v1.TENANT_KEY, claims.TenantID)
		c.Set("user", claims.User)
	}
}

func Cors(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, Accept-Language")
	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}
	c.Next()
}

type LimiterFunc func(key string, opts ...core.LimitOption) gin.HandlerFunc

func UseLimit(appCore *core.Core, operation string, genKeyFunc func(c *gin.Context) string, opts ...core.LimitOption) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !appCore.UseLimiter(operation+":"+genKeyFunc(c), opts...).Allow() {
			response.APIError(c, errors.New("middleware.limiter", i18n.ERROR_TOO_MANY_REQUESTS, nil).Code(http.StatusTooManyRequests))
		}
	}
}

// Metrics 记录每个请求的响应耗时与错误数
func Metrics(core *core.Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := core.Metrics().ApiResponseTimer(c.FullPath())
		c.Next()
		timer.ObserveDuration()

		if c.Writer.Status() >= http.StatusBadRequest {
			core.Metrics().ApiErrorInc(c.Request.Method, c.FullPath(), c.Writer.Status())
		}
	}
}
