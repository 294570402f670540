package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	v1 "github.com/filedepot/filedepot/app/logic/v1"
	"github.com/filedepot/filedepot/app/response"
	"github.com/filedepot/filedepot/pkg/errors"
	"github.com/filedepot/filedepot/pkg/i18n"
	"github.com/filedepot/filedepot/pkg/types"
	"github.com/filedepot/filedepot/pkg/utils"
)

func (s *HttpSrv) UploadFile(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.APIError(c, errors.New("UploadFile.FormFile", i18n.ERROR_INVALIDARGUMENT, err).Code(http.StatusBadRequest))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		response.APIError(c, errors.New("UploadFile.ReadAll", i18n.ERROR_INTERNAL, err))
		return
	}

	result, err := v1.NewFileLogic(c, s.Core).UploadFile(v1.UploadFileRequest{
		Name:         header.Filename,
		Content:      content,
		DepartmentID: c.PostForm("department_id"),
		GroupID:      c.PostForm("group_id"),
		Visibility:   c.PostForm("visibility"),
	})
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, result)
}

func (s *HttpSrv) UploadFileVersion(c *gin.Context) {
	fileID, _ := c.Params.Get("fileid")

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.APIError(c, errors.New("UploadFileVersion.FormFile", i18n.ERROR_INVALIDARGUMENT, err).Code(http.StatusBadRequest))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		response.APIError(c, errors.New("UploadFileVersion.ReadAll", i18n.ERROR_INTERNAL, err))
		return
	}

	record, err := v1.NewFileLogic(c, s.Core).NewVersion(fileID, header.Filename, content, c.PostForm("lock_password"))
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, record)
}

func (s *HttpSrv) DownloadFile(c *gin.Context) {
	fileID, _ := c.Params.Get("fileid")

	file, obj, err := v1.NewFileLogic(c, s.Core).Download(fileID)
	if err != nil {
		response.APIError(c, err)
		return
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", `attachment; filename="`+file.Name+`"`)
	c.Data(http.StatusOK, contentType, obj.Content)
}

type ListFilesRequest struct {
	DepartmentID string `form:"department_id"`
	GroupID      string `form:"group_id"`
	ScanStatus   string `form:"scan_status"`
	Page         uint64 `form:"page"`
	PageSize     uint64 `form:"pagesize"`
}

func (s *HttpSrv) ListFiles(c *gin.Context) {
	var (
		err error
		req ListFilesRequest
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

	list, total, err := v1.NewFileLogic(c, s.Core).ListFiles(types.ListFileOptions{
		DepartmentID: req.DepartmentID,
		GroupID:      req.GroupID,
		ScanStatus:   req.ScanStatus,
	}, req.Page, req.PageSize)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, gin.H{
		"list":  list,
		"total": total,
	})
}

type RenameFileRequest struct {
	Name         string `json:"name" binding:"required"`
	LockPassword string `json:"lock_password"`
}

func (s *HttpSrv) RenameFile(c *gin.Context) {
	var (
		err error
		req RenameFileRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	fileID, _ := c.Params.Get("fileid")
	if err = v1.NewFileLogic(c, s.Core).Rename(fileID, req.Name, req.LockPassword); err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, nil)
}

func (s *HttpSrv) DeleteFile(c *gin.Context) {
	fileID, _ := c.Params.Get("fileid")
	if err := v1.NewFileLogic(c, s.Core).Delete(fileID, c.Query("lock_password")); err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, nil)
}

type SetVisibilityRequest struct {
	Visibility string `json:"visibility" binding:"required"`
}

func (s *HttpSrv) SetFileVisibility(c *gin.Context) {
	var (
		err error
		req SetVisibilityRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	fileID, _ := c.Params.Get("fileid")
	if err = v1.NewFileLogic(c, s.Core).SetVisibility(fileID, req.Visibility); err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, nil)
}

type DuplicateHintRequest struct {
	DepartmentID string `form:"department_id"`
	Hash         string `form:"hash" binding:"required"`
}

func (s *HttpSrv) DuplicateHint(c *gin.Context) {
	var (
		err error
		req DuplicateHintRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	list, err := v1.NewFileLogic(c, s.Core).DuplicateHint(req.DepartmentID, req.Hash)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, gin.H{
		"list": list,
	})
}
