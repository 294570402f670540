package v1

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/filedepot/filedepot/pkg/errors"
	"github.com/filedepot/filedepot/pkg/i18n"
	"github.com/filedepot/filedepot/pkg/types"
)

func TestImmutableGuard(t *testing.T) {
	mutable := &types.FileRecord{ID: "f1", Version: 1}
	assert.NoError(t, immutableGuard("t", mutable))

	frozen := &types.FileRecord{ID: "f2", Version: 2, IsImmutable: true}
	err := immutableGuard("t", frozen)
	assert.Error(t, err)

	ce, ok := err.(*errors.CustomizedError)
	assert.True(t, ok)
	assert.Equal(t, i18n.ERROR_FILE_IMMUTABLE, ce.Message())
	assert.Equal(t, http.StatusConflict, ce.GetCode())
}
