package handler

import (
	"github.com/gin-gonic/gin"

	v1 "github.com/filedepot/filedepot/app/logic/v1"
	"github.com/filedepot/filedepot/app/response"
	"github.com/filedepot/filedepot/pkg/utils"
)

type LockRequest struct {
	Password string `json:"password"`
	MinRole  string `json:"min_role"`
}

type UnlockRequest struct {
	Password string `json:"password"`
}

func (s *HttpSrv) LockFile(c *gin.Context) {
	var (
		err error
		req LockRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	fileID, _ := c.Params.Get("fileid")
	if err = v1.NewLockLogic(c, s.Core).LockFile(fileID, v1.LockRequest{
		Password: req.Password,
		MinRole:  req.MinRole,
	}); err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, nil)
}

func (s *HttpSrv) UnlockFile(c *gin.Context) {
	var (
		err error
		req UnlockRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	fileID, _ := c.Params.Get("fileid")
	if err = v1.NewLockLogic(c, s.Core).UnlockFile(fileID, req.Password); err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, nil)
}

func (s *HttpSrv) LockGroup(c *gin.Context) {
	var (
		err error
		req LockRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	groupID, _ := c.Params.Get("groupid")
	if err = v1.NewLockLogic(c, s.Core).LockGroup(groupID, v1.LockRequest{
		Password: req.Password,
		MinRole:  req.MinRole,
	}); err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, nil)
}

func (s *HttpSrv) UnlockGroup(c *gin.Context) {
	var (
		err error
		req UnlockRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	groupID, _ := c.Params.Get("groupid")
	if err = v1.NewLockLogic(c, s.Core).UnlockGroup(groupID, req.Password); err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, nil)
}
