package service

import (
	"github.com/gin-gonic/gin"

	"github.com/filedepot/filedepot/app/core"
	v1 "github.com/filedepot/filedepot/app/logic/v1"
	"github.com/filedepot/filedepot/app/response"
	"github.com/filedepot/filedepot/cmd/service/handler"
	"github.com/filedepot/filedepot/cmd/service/middleware"
	"github.com/filedepot/filedepot/pkg/metrics"
)

func serve(core *core.Core) {
	httpSrv := &handler.HttpSrv{
		Core:   core,
		Engine: core.HttpEngine(),
	}
	setupHttpRouter(httpSrv)

	core.HttpEngine().Run(core.Cfg().Addr)
}

func GetUserLimitBuilder(appCore *core.Core) middleware.LimiterFunc {
	return func(key string, opts ...core.LimitOption) gin.HandlerFunc {
		return middleware.UseLimit(appCore, key, func(c *gin.Context) string {
			token, _ := v1.InjectTokenClaim(c)
			return token.User
		}, opts...)
	}
}

func setupHttpRouter(s *handler.HttpSrv) {
	userLimit := GetUserLimitBuilder(s.Core)

	s.Engine.Use(middleware.I18n(), response.NewResponse())
	s.Engine.Use(middleware.Cors)
	s.Engine.Use(middleware.Metrics(s.Core))

	s.Engine.GET("/metrics", metrics.DefaultExportHandler())

	apiV1 := s.Engine.Group("/api/v1")
	{
		authed := apiV1.Group("")
		authed.Use(middleware.Authorization(s.Core))

		file := authed.Group("/file")
		{
			file.POST("", userLimit("upload", core.WithLimit(30)), s.UploadFile)
			file.GET("/list", s.ListFiles)
			file.GET("/duplicate", s.DuplicateHint)
			file.GET("/:fileid/download", s.DownloadFile)
			file.POST("/:fileid/version", userLimit("upload", core.WithLimit(30)), s.UploadFileVersion)
			file.PUT("/:fileid/name", s.RenameFile)
			file.PUT("/:fileid/visibility", s.SetFileVisibility)
			file.DELETE("/:fileid", s.DeleteFile)

			file.POST("/:fileid/lock", s.LockFile)
			file.DELETE("/:fileid/lock", s.UnlockFile)
		}

		group := authed.Group("/group")
		{
			group.POST("", s.CreateGroup)
			group.POST("/:groupid/lock", s.LockGroup)
			group.DELETE("/:groupid/lock", s.UnlockGroup)
		}

		admin := authed.Group("/admin")
		{
			admin.GET("/quarantine/list", s.ListQuarantine)
			admin.POST("/quarantine/:id/release", s.ReleaseQuarantine)
			admin.POST("/quarantine/:id/purge", s.PurgeQuarantine)
			admin.GET("/offense/:userid", s.GetOffenseCount)

			admin.GET("/job/scan/list", s.ListScanJobs)
			admin.POST("/job/scan/:id/replay", s.ReplayScanJob)
			admin.GET("/job/replication/list", s.ListReplicationJobs)
			admin.POST("/job/replication/:id/replay", s.ReplayReplicationJob)
			admin.GET("/job/stats", s.GetQueueStats)

			admin.POST("/tenant", s.CreateTenant)
			admin.GET("/tenant/policy", s.GetTenantPolicy)
			admin.POST("/user", s.CreateUser)
			admin.PUT("/user/:userid/status", s.SetUserStatus)
			admin.POST("/token", s.IssueToken)
		}
	}
}
