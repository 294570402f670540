package v1

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/filedepot/filedepot/app/core/srv"
	"github.com/filedepot/filedepot/pkg/errors"
	"github.com/filedepot/filedepot/pkg/i18n"
	"github.com/filedepot/filedepot/pkg/types"
	"github.com/filedepot/filedepot/pkg/utils"
)

func TestLockSatisfied(t *testing.T) {
	rbac := srv.SetupRBACSrv()

	lock := types.LockState{
		HeldBy:       "u1",
		PasswordHash: utils.MD5("open sesame"),
		MinRole:      types.RoleEditor,
	}

	t.Run("holder", func(t *testing.T) {
		assert.True(t, lockSatisfied(rbac, "u1", types.RoleViewer, lock, ""))
	})

	t.Run("password match", func(t *testing.T) {
		assert.True(t, lockSatisfied(rbac, "u2", types.RoleViewer, lock, "open sesame"))
	})

	t.Run("password mismatch", func(t *testing.T) {
		assert.False(t, lockSatisfied(rbac, "u2", types.RoleViewer, lock, "wrong"))
	})

	t.Run("min role satisfied", func(t *testing.T) {
		assert.True(t, lockSatisfied(rbac, "u2", types.RoleEditor, lock, ""))
	})

	t.Run("admin override", func(t *testing.T) {
		noEscape := types.LockState{HeldBy: "u1"}
		assert.True(t, lockSatisfied(rbac, "u2", types.RoleAdmin, noEscape, ""))
		assert.True(t, lockSatisfied(rbac, "u2", types.RoleChief, noEscape, ""))
	})

	t.Run("stranger denied", func(t *testing.T) {
		noEscape := types.LockState{HeldBy: "u1"}
		assert.False(t, lockSatisfied(rbac, "u2", types.RoleViewer, noEscape, ""))
		assert.False(t, lockSatisfied(rbac, "u2", types.RoleEditor, noEscape, "whatever"))
	})
}

// 写操作与解锁共用同一套锁准入：角色达标或口令正确即可写入他人锁定的记录
func TestLockGuardError(t *testing.T) {
	rbac := srv.SetupRBACSrv()

	lock := types.LockState{
		HeldBy:       "u1",
		PasswordHash: utils.MD5("open sesame"),
		MinRole:      types.RoleEditor,
	}

	t.Run("min role actor writes locked file", func(t *testing.T) {
		assert.NoError(t, lockGuardError("t", rbac, "u2", types.RoleEditor, lock, ""))
	})

	t.Run("password unlocks write", func(t *testing.T) {
		assert.NoError(t, lockGuardError("t", rbac, "u2", types.RoleViewer, lock, "open sesame"))
	})

	t.Run("password required hint", func(t *testing.T) {
		err := lockGuardError("t", rbac, "u2", types.RoleViewer, lock, "")
		assert.Error(t, err)
		ce, ok := err.(*errors.CustomizedError)
		assert.True(t, ok)
		assert.Equal(t, i18n.ERROR_FILE_LOCK_REQUIRED, ce.Message())
		assert.Equal(t, http.StatusConflict, ce.GetCode())
	})

	t.Run("wrong password rejected", func(t *testing.T) {
		err := lockGuardError("t", rbac, "u2", types.RoleViewer, lock, "wrong")
		assert.Error(t, err)
		ce, ok := err.(*errors.CustomizedError)
		assert.True(t, ok)
		assert.Equal(t, i18n.ERROR_FILE_LOCKED, ce.Message())
	})

	t.Run("holder writes freely", func(t *testing.T) {
		assert.NoError(t, lockGuardError("t", rbac, "u1", types.RoleViewer, lock, ""))
	})
}
