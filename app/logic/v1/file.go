package v1

import (
	"context"
	"net/http"
	"path"
	"time"

	"github.com/filedepot/filedepot/app/core"
	"github.com/filedepot/filedepot/app/core/srv"
	"github.com/filedepot/filedepot/pkg/errors"
	"github.com/filedepot/filedepot/pkg/i18n"
	objstorage "github.com/filedepot/filedepot/pkg/object-storage"
	"github.com/filedepot/filedepot/pkg/types"
	"github.com/filedepot/filedepot/pkg/utils"
)

type FileLogic struct {
	ctx  context.Context
	core *core.Core
	UserInfo
}

func NewFileLogic(ctx context.Context, core *core.Core) *FileLogic {
	return &FileLogic{
		ctx:      ctx,
		core:     core,
		UserInfo: SetupUserInfo(ctx, core),
	}
}

type UploadFileRequest struct {
	Name         string
	Content      []byte
	DepartmentID string
	GroupID      string
	Visibility   string
}

// UploadFileResult 上传结果。Duplicates 只是内容摘要相同的已有记录提示，
// 不拦截上传，是否复用由调用方自行决定
type UploadFileResult struct {
	File       *types.FileRecord   `json:"file"`
	Duplicates []*types.FileRecord `json:"duplicates,omitempty"`
}

func (l *FileLogic) UploadFile(req UploadFileRequest) (*UploadFileResult, error) {
	tenantID := l.GetUserInfo().TenantID
	ownerID := l.GetUserInfo().User

	user, err := l.core.Store().UserStore().GetUser(l.ctx, tenantID, ownerID)
	if err != nil {
		return nil, errors.New("FileLogic.UploadFile.UserStore.GetUser", i18n.ERROR_INTERNAL, err)
	}
	if user == nil {
		return nil, errors.New("FileLogic.UploadFile.UserNotFound", i18n.ERROR_NOT_FOUND, nil).Code(http.StatusNotFound)
	}
	if user.Status == types.USER_STATUS_SUSPENDED {
		return nil, errors.New("FileLogic.UploadFile.Suspended", i18n.ERROR_ACCOUNT_SUSPENDED, nil).Code(http.StatusForbidden)
	}

	policy, err := l.core.Store().TenantStore().GetPolicy(l.ctx, tenantID)
	if err != nil {
		return nil, errors.New("FileLogic.UploadFile.TenantStore.GetPolicy", i18n.ERROR_INTERNAL, err)
	}
	if policy == nil {
		return nil, errors.New("FileLogic.UploadFile.TenantNotFound", i18n.ERROR_NOT_FOUND, nil).Code(http.StatusNotFound)
	}

	if err = checkUploadPolicy(policy, req.Name, int64(len(req.Content))); err != nil {
		return nil, err
	}

	visibility := req.Visibility
	if visibility == "" {
		visibility = types.FILE_VISIBILITY_DEPARTMENT
	}
	if visibility != types.FILE_VISIBILITY_DEPARTMENT && visibility != types.FILE_VISIBILITY_PRIVATE {
		return nil, errors.New("FileLogic.UploadFile.Visibility", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}

	hash := utils.ContentHash(req.Content)
	duplicates, err := l.core.Store().FileStore().ListByContentHash(l.ctx, tenantID, req.DepartmentID, hash)
	if err != nil {
		return nil, errors.New("FileLogic.UploadFile.FileStore.ListByContentHash", i18n.ERROR_INTERNAL, err)
	}

	file, err := l.createFile(createFileArgs{
		tenantID:     tenantID,
		departmentID: req.DepartmentID,
		ownerID:      ownerID,
		groupID:      req.GroupID,
		name:         req.Name,
		content:      req.Content,
		hash:         hash,
		visibility:   visibility,
		version:      1,
	})
	if err != nil {
		return nil, err
	}

	return &UploadFileResult{
		File:       file,
		Duplicates: duplicates,
	}, nil
}

type createFileArgs struct {
	tenantID      string
	departmentID  string
	ownerID       string
	groupID       string
	name          string
	content       []byte
	hash          string
	visibility    string
	version       int
	versionParent string
	immutable     bool
}

// createFile 先写对象再落记录，最后入扫描队列。
// 对象写入失败时不会留下任何记录
func (l *FileLogic) createFile(args createFileArgs) (*types.FileRecord, error) {
	id := utils.GenUniqIDStr()
	objectName := id
	if ext := utils.FileExtension(args.name); ext != "" {
		objectName = id + "." + ext
	}
	storagePath := path.Join("files", args.tenantID, objectName)

	if err := l.core.Primary().PutObject(l.ctx, storagePath, args.content); err != nil {
		return nil, errors.New("FileLogic.createFile.PutObject", i18n.ERROR_INTERNAL, err)
	}

	now := time.Now().Unix()
	file := types.FileRecord{
		ID:            id,
		TenantID:      args.tenantID,
		DepartmentID:  args.departmentID,
		Name:          args.name,
		StoragePath:   storagePath,
		Size:          int64(len(args.content)),
		ContentHash:   args.hash,
		Version:       args.version,
		VersionParent: args.versionParent,
		IsImmutable:   args.immutable,
		Visibility:    args.visibility,
		OwnerID:       args.ownerID,
		ScanStatus:    types.FILE_SCAN_STATUS_PENDING,
		GroupID:       args.groupID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := l.core.Store().FileStore().Create(l.ctx, file); err != nil {
		return nil, errors.New("FileLogic.createFile.FileStore.Create", i18n.ERROR_INTERNAL, err)
	}

	if _, err := l.core.Store().ScanJobStore().Enqueue(l.ctx, types.ScanJob{
		ID:        utils.GenUniqIDStr(),
		FileID:    id,
		TenantID:  args.tenantID,
		Status:    types.SCAN_JOB_STATUS_PENDING,
		CreatedAt: now,
	}); err != nil {
		return nil, errors.New("FileLogic.createFile.ScanJobStore.Enqueue", i18n.ERROR_INTERNAL, err)
	}

	return &file, nil
}

// NewVersion 基于已有记录创建新版本。父记录本身永不被修改，
// 版本链通过 version_parent 单向引用
func (l *FileLogic) NewVersion(parentID string, name string, content []byte, lockPassword string) (*types.FileRecord, error) {
	tenantID := l.GetUserInfo().TenantID
	ownerID := l.GetUserInfo().User

	parent, err := l.core.Store().FileStore().GetFile(l.ctx, tenantID, parentID)
	if err != nil {
		return nil, errors.New("FileLogic.NewVersion.FileStore.GetFile", i18n.ERROR_INTERNAL, err)
	}
	if parent == nil || parent.Deleted {
		return nil, errors.New("FileLogic.NewVersion.ParentMissing", i18n.ERROR_VERSION_PARENT_MISSING, nil).Code(http.StatusNotFound)
	}
	if parent.IsDirectory {
		return nil, errors.New("FileLogic.NewVersion.Directory", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}

	if err = l.guardMutable(parent, lockPassword); err != nil {
		return nil, err
	}

	user, err := l.core.Store().UserStore().GetUser(l.ctx, tenantID, ownerID)
	if err != nil {
		return nil, errors.New("FileLogic.NewVersion.UserStore.GetUser", i18n.ERROR_INTERNAL, err)
	}
	if user != nil && user.Status == types.USER_STATUS_SUSPENDED {
		return nil, errors.New("FileLogic.NewVersion.Suspended", i18n.ERROR_ACCOUNT_SUSPENDED, nil).Code(http.StatusForbidden)
	}

	policy, err := l.core.Store().TenantStore().GetPolicy(l.ctx, tenantID)
	if err != nil {
		return nil, errors.New("FileLogic.NewVersion.TenantStore.GetPolicy", i18n.ERROR_INTERNAL, err)
	}
	if policy == nil {
		return nil, errors.New("FileLogic.NewVersion.TenantNotFound", i18n.ERROR_NOT_FOUND, nil).Code(http.StatusNotFound)
	}

	if name == "" {
		name = parent.Name
	}
	if err = checkUploadPolicy(policy, name, int64(len(content))); err != nil {
		return nil, err
	}

	return l.createFile(createFileArgs{
		tenantID:      tenantID,
		departmentID:  parent.DepartmentID,
		ownerID:       ownerID,
		groupID:       parent.GroupID,
		name:          name,
		content:       content,
		hash:          utils.ContentHash(content),
		visibility:    parent.Visibility,
		version:       parent.Version + 1,
		versionParent: parent.ID,
		immutable:     policy.ImmutableVersions,
	})
}

// Download 读取不受锁影响，但受可见性与扫描结论约束
func (l *FileLogic) Download(fileID string) (*types.FileRecord, *objstorage.ObjectResult, error) {
	tenantID := l.GetUserInfo().TenantID

	file, err := l.core.Store().FileStore().GetFile(l.ctx, tenantID, fileID)
	if err != nil {
		return nil, nil, errors.New("FileLogic.Download.FileStore.GetFile", i18n.ERROR_INTERNAL, err)
	}
	if file == nil || file.Deleted {
		return nil, nil, errors.New("FileLogic.Download.NotFound", i18n.ERROR_NOT_FOUND, nil).Code(http.StatusNotFound)
	}
	if file.IsDirectory {
		return nil, nil, errors.New("FileLogic.Download.Directory", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}

	if file.Visibility == types.FILE_VISIBILITY_PRIVATE {
		if err = l.Identification(l.lazyRolerFromFileID(tenantID, fileID), srv.PermissionAdmin); err != nil {
			return nil, nil, err
		}
	}

	if err = l.checkDownloadable(file); err != nil {
		return nil, nil, err
	}

	obj, err := l.core.Primary().GetObject(l.ctx, file.StoragePath)
	if err != nil {
		return nil, nil, errors.New("FileLogic.Download.GetObject", i18n.ERROR_INTERNAL, err)
	}
	return file, obj, nil
}

// checkDownloadable 感染文件按当时执行的动作判断是否还能下载：
// flag 仅标记仍可下载，quarantine/delete 后内容已不在原路径
func (l *FileLogic) checkDownloadable(file *types.FileRecord) error {
	if file.ScanStatus != types.FILE_SCAN_STATUS_INFECTED {
		return nil
	}

	results, err := l.core.Store().ScanResultStore().ListByFile(l.ctx, file.TenantID, file.ID)
	if err != nil {
		return errors.New("FileLogic.checkDownloadable.ScanResultStore.ListByFile", i18n.ERROR_INTERNAL, err)
	}

	for _, r := range results {
		if !r.IsInfected {
			continue
		}
		if r.ActionTaken == types.SCAN_ACTION_FLAG {
			return nil
		}
		break
	}
	return errors.New("FileLogic.checkDownloadable.Infected", i18n.ERROR_FILE_NOT_AVAILABLE, nil).Code(http.StatusForbidden)
}

func (l *FileLogic) Rename(fileID, name, lockPassword string) error {
	if name == "" {
		return errors.New("FileLogic.Rename.EmptyName", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}

	tenantID := l.GetUserInfo().TenantID
	file, err := l.core.Store().FileStore().GetFile(l.ctx, tenantID, fileID)
	if err != nil {
		return errors.New("FileLogic.Rename.FileStore.GetFile", i18n.ERROR_INTERNAL, err)
	}
	if file == nil || file.Deleted {
		return errors.New("FileLogic.Rename.NotFound", i18n.ERROR_NOT_FOUND, nil).Code(http.StatusNotFound)
	}
	if err = immutableGuard("FileLogic.Rename.Immutable", file); err != nil {
		return err
	}

	if err = l.Identification(l.lazyRolerFromFileID(tenantID, fileID), srv.PermissionEdit); err != nil {
		return err
	}
	if err = l.guardMutable(file, lockPassword); err != nil {
		return err
	}

	// 对象路径按 id 派生，重命名不搬运对象
	if err = l.core.Store().FileStore().Rename(l.ctx, tenantID, fileID, name, file.StoragePath); err != nil {
		return errors.New("FileLogic.Rename.FileStore.Rename", i18n.ERROR_INTERNAL, err)
	}
	return nil
}

// Delete 软删除：记录保留，主存储对象移除。
// mirror 模式下同步产生一个副本删除任务
func (l *FileLogic) Delete(fileID, lockPassword string) error {
	tenantID := l.GetUserInfo().TenantID
	file, err := l.core.Store().FileStore().GetFile(l.ctx, tenantID, fileID)
	if err != nil {
		return errors.New("FileLogic.Delete.FileStore.GetFile", i18n.ERROR_INTERNAL, err)
	}
	if file == nil || file.Deleted {
		return errors.New("FileLogic.Delete.NotFound", i18n.ERROR_NOT_FOUND, nil).Code(http.StatusNotFound)
	}
	if err = immutableGuard("FileLogic.Delete.Immutable", file); err != nil {
		return err
	}

	if err = l.Identification(l.lazyRolerFromFileID(tenantID, fileID), srv.PermissionEdit); err != nil {
		return err
	}
	if err = l.guardMutable(file, lockPassword); err != nil {
		return err
	}

	if !file.IsDirectory {
		if err = l.core.Primary().DeleteObject(l.ctx, file.StoragePath); err != nil {
			return errors.New("FileLogic.Delete.DeleteObject", i18n.ERROR_INTERNAL, err)
		}
	}

	if err = l.core.Store().FileStore().SoftDelete(l.ctx, tenantID, fileID); err != nil {
		return errors.New("FileLogic.Delete.FileStore.SoftDelete", i18n.ERROR_INTERNAL, err)
	}

	policy, err := l.core.Store().TenantStore().GetPolicy(l.ctx, tenantID)
	if err != nil {
		return errors.New("FileLogic.Delete.TenantStore.GetPolicy", i18n.ERROR_INTERNAL, err)
	}
	// 删除只在 mirror 模式下传播，backup 模式保留副本
	if policy != nil && policy.ReplicationMode == types.REPLICATION_MODE_MIRROR && !file.IsDirectory {
		if _, err = l.core.Store().ReplicationJobStore().Enqueue(l.ctx, types.ReplicationJob{
			ID:          utils.GenUniqIDStr(),
			TenantID:    tenantID,
			StoragePath: file.StoragePath,
			Operation:   types.REPLICATION_OP_DELETE,
			Status:      types.REPLICATION_JOB_STATUS_PENDING,
			MaxRetries:  policy.MaxReplicationRetry,
			CreatedAt:   time.Now().Unix(),
		}); err != nil {
			return errors.New("FileLogic.Delete.ReplicationJobStore.Enqueue", i18n.ERROR_INTERNAL, err)
		}
	}
	return nil
}

func (l *FileLogic) SetVisibility(fileID, visibility string) error {
	if visibility != types.FILE_VISIBILITY_DEPARTMENT && visibility != types.FILE_VISIBILITY_PRIVATE {
		return errors.New("FileLogic.SetVisibility.Invalid", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}

	tenantID := l.GetUserInfo().TenantID
	file, err := l.core.Store().FileStore().GetFile(l.ctx, tenantID, fileID)
	if err != nil {
		return errors.New("FileLogic.SetVisibility.FileStore.GetFile", i18n.ERROR_INTERNAL, err)
	}
	if file == nil || file.Deleted {
		return errors.New("FileLogic.SetVisibility.NotFound", i18n.ERROR_NOT_FOUND, nil).Code(http.StatusNotFound)
	}

	if err = l.Identification(l.lazyRolerFromFileID(tenantID, fileID), srv.PermissionAdmin); err != nil {
		return err
	}

	if err = l.core.Store().FileStore().SetVisibility(l.ctx, tenantID, fileID, visibility); err != nil {
		return errors.New("FileLogic.SetVisibility.FileStore.SetVisibility", i18n.ERROR_INTERNAL, err)
	}
	return nil
}

func (l *FileLogic) ListFiles(opts types.ListFileOptions, page, pageSize uint64) ([]*types.FileRecord, int64, error) {
	opts.TenantID = l.GetUserInfo().TenantID

	list, err := l.core.Store().FileStore().ListFiles(l.ctx, opts, page, pageSize)
	if err != nil {
		return nil, 0, errors.New("FileLogic.ListFiles.FileStore.ListFiles", i18n.ERROR_INTERNAL, err)
	}
	total, err := l.core.Store().FileStore().Total(l.ctx, opts)
	if err != nil {
		return nil, 0, errors.New("FileLogic.ListFiles.FileStore.Total", i18n.ERROR_INTERNAL, err)
	}
	return list, total, nil
}

// DuplicateHint 按内容摘要查询当前部门内已有的相同内容记录
func (l *FileLogic) DuplicateHint(departmentID, hash string) ([]*types.FileRecord, error) {
	if hash == "" {
		return nil, errors.New("FileLogic.DuplicateHint.EmptyHash", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}
	list, err := l.core.Store().FileStore().ListByContentHash(l.ctx, l.GetUserInfo().TenantID, departmentID, hash)
	if err != nil {
		return nil, errors.New("FileLogic.DuplicateHint.FileStore.ListByContentHash", i18n.ERROR_INTERNAL, err)
	}
	return list, nil
}

// immutableGuard 不可变版本禁止改名与删除，新建后续版本不算对它的修改
func immutableGuard(trace string, file *types.FileRecord) error {
	if !file.IsImmutable {
		return nil
	}
	return errors.New(trace, i18n.ERROR_FILE_IMMUTABLE, nil).Code(http.StatusConflict)
}

// guardMutable 写操作前的锁检查：文件自身的锁与所属文件组的锁。
// 持锁人、口令比对通过、角色不低于锁的最低角色，任意一条满足即放行，
// lockPassword 由调用方随写请求附带
func (l *FileLogic) guardMutable(file *types.FileRecord, lockPassword string) error {
	actor := l.GetUserInfo().User
	role := l.GetUserInfo().GetRole()
	rbac := l.core.Srv().RBAC()

	if file.IsLocked() {
		if err := lockGuardError("FileLogic.guardMutable.FileLocked", rbac, actor, role, file.LockState(), lockPassword); err != nil {
			return err
		}
	}

	if file.GroupID != "" {
		group, err := l.core.Store().FileGroupStore().GetGroup(l.ctx, file.TenantID, file.GroupID)
		if err != nil {
			return errors.New("FileLogic.guardMutable.FileGroupStore.GetGroup", i18n.ERROR_INTERNAL, err)
		}
		if group != nil && group.IsLocked() {
			if err := lockGuardError("FileLogic.guardMutable.GroupLocked", rbac, actor, role, group.LockState(), lockPassword); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkUploadPolicy 租户侧的上传准入：扩展名黑名单与大小上限
func checkUploadPolicy(policy *types.TenantPolicy, name string, size int64) error {
	ext := utils.FileExtension(name)
	for _, blocked := range policy.BlockedExtensions {
		if blocked != "" && ext == blocked {
			return errors.New("checkUploadPolicy.Extension", i18n.ERROR_EXTENSION_BLOCKED, nil).Code(http.StatusBadRequest)
		}
	}
	if policy.MaxFileSize > 0 && size > policy.MaxFileSize {
		return errors.New("checkUploadPolicy.Size", i18n.ERROR_FILE_SIZE_EXCEEDED, nil).Code(http.StatusBadRequest)
	}
	return nil
}
