package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	v1 "github.com/filedepot/filedepot/app/logic/v1"
	"github.com/filedepot/filedepot/app/response"
	"github.com/filedepot/filedepot/pkg/types"
	"github.com/filedepot/filedepot/pkg/utils"
)

type PagingRequest struct {
	Page     uint64 `form:"page"`
	PageSize uint64 `form:"pagesize"`
}

func (r *PagingRequest) Normalize() {
	if r.Page == 0 {
		r.Page = types.DEFAULT_PAGE
	}
	if r.PageSize == 0 || r.PageSize > 100 {
		r.PageSize = types.DEFAULT_PAGE_SIZE
	}
}

func (s *HttpSrv) ListQuarantine(c *gin.Context) {
	var (
		err error
		req PagingRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}
	req.Normalize()

	list, err := v1.NewQuarantineLogic(c, s.Core).List(req.Page, req.PageSize)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, gin.H{
		"list": list,
	})
}

func (s *HttpSrv) ReleaseQuarantine(c *gin.Context) {
	id, _ := c.Params.Get("id")
	if err := v1.NewQuarantineLogic(c, s.Core).Release(id); err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, nil)
}

func (s *HttpSrv) PurgeQuarantine(c *gin.Context) {
	id, _ := c.Params.Get("id")
	if err := v1.NewQuarantineLogic(c, s.Core).Purge(id); err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, nil)
}

func (s *HttpSrv) GetOffenseCount(c *gin.Context) {
	userID, _ := c.Params.Get("userid")
	record, err := v1.NewQuarantineLogic(c, s.Core).OffenseCount(userID)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, record)
}

type ListJobsRequest struct {
	Status   string `form:"status"`
	Page     uint64 `form:"page"`
	PageSize uint64 `form:"pagesize"`
}

func (s *HttpSrv) ListScanJobs(c *gin.Context) {
	var (
		err error
		req ListJobsRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}
	if req.Page == 0 {
		req.Page = types.DEFAULT_PAGE
	}
	if req.PageSize == 0 || req.PageSize > 100 {
		req.PageSize = types.DEFAULT_PAGE_SIZE
	}

	list, err := v1.NewJobLogic(c, s.Core).ListScanJobs(req.Status, req.Page, req.PageSize)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, gin.H{
		"list": list,
	})
}

func (s *HttpSrv) ReplayScanJob(c *gin.Context) {
	id, _ := c.Params.Get("id")
	if err := v1.NewJobLogic(c, s.Core).ReplayScanJob(id); err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, nil)
}

func (s *HttpSrv) ListReplicationJobs(c *gin.Context) {
	var (
		err error
		req ListJobsRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}
	if req.Page == 0 {
		req.Page = types.DEFAULT_PAGE
	}
	if req.PageSize == 0 || req.PageSize > 100 {
		req.PageSize = types.DEFAULT_PAGE_SIZE
	}

	list, err := v1.NewJobLogic(c, s.Core).ListReplicationJobs(req.Status, req.Page, req.PageSize)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, gin.H{
		"list": list,
	})
}

func (s *HttpSrv) ReplayReplicationJob(c *gin.Context) {
	id, _ := c.Params.Get("id")
	if err := v1.NewJobLogic(c, s.Core).ReplayReplicationJob(id); err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, nil)
}

func (s *HttpSrv) GetQueueStats(c *gin.Context) {
	stats, err := v1.NewJobLogic(c, s.Core).Stats()
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, stats)
}

type CreateTenantRequest struct {
	Name string `json:"name" binding:"required"`
}

func (s *HttpSrv) CreateTenant(c *gin.Context) {
	var (
		err error
		req CreateTenantRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	tenant, err := v1.NewTenantLogic(c, s.Core).CreateTenant(types.Tenant{
		Name:        req.Name,
		ScanEnabled: true,
	})
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, tenant)
}

func (s *HttpSrv) GetTenantPolicy(c *gin.Context) {
	policy, err := v1.NewTenantLogic(c, s.Core).GetPolicy()
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, policy)
}

type CreateUserRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email"`
	Role  string `json:"role" binding:"required"`
}

func (s *HttpSrv) CreateUser(c *gin.Context) {
	var (
		err error
		req CreateUserRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	user, err := v1.NewTenantLogic(c, s.Core).CreateUser(v1.CreateUserRequest{
		Name:  req.Name,
		Email: req.Email,
		Role:  req.Role,
	})
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, user)
}

type SetUserStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (s *HttpSrv) SetUserStatus(c *gin.Context) {
	var (
		err error
		req SetUserStatusRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	userID, _ := c.Params.Get("userid")
	if err = v1.NewTenantLogic(c, s.Core).SetUserStatus(userID, req.Status); err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, nil)
}

type CreateGroupRequest struct {
	Name         string `json:"name" binding:"required"`
	DepartmentID string `json:"department_id"`
}

func (s *HttpSrv) CreateGroup(c *gin.Context) {
	var (
		err error
		req CreateGroupRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	group, err := v1.NewTenantLogic(c, s.Core).CreateGroup(req.Name, req.DepartmentID)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, group)
}

type IssueTokenRequest struct {
	UserID       string `json:"user_id" binding:"required"`
	DepartmentID string `json:"department_id"`
	TTLSeconds   int64  `json:"ttl_seconds"`
}

func (s *HttpSrv) IssueToken(c *gin.Context) {
	var (
		err error
		req IssueTokenRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	token, err := v1.NewTenantLogic(c, s.Core).IssueToken(req.UserID, req.DepartmentID, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, gin.H{
		"token": token,
	})
}
