package core

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/filedepot/filedepot/pkg/utils"
)

func TestSetupConfigFromEnv(t *testing.T) {
	addr := "localhost:11111"
	os.Setenv("DEPOT_API_SERVICE_ADDRESS", addr)
	os.Setenv("DEPOT_CLUSTER_ID", "3")

	cfg := LoadBaseConfigFromENV()

	assert.Equal(t, cfg.Addr, addr)
	assert.Equal(t, int64(3), cfg.ClusterID)
}

// 核心启动流程必须先初始化 id 生成器，否则第一次建档就会 panic
func TestIDWorkerReadyAfterSetup(t *testing.T) {
	utils.SetupIDWorker(0)

	assert.NotPanics(t, func() {
		id := utils.GenUniqIDStr()
		assert.NotEmpty(t, id)
	})
}
