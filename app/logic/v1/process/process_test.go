package process

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/filedepot/filedepot/app/core/srv"
	objstorage "github.com/filedepot/filedepot/pkg/object-storage"
	"github.com/filedepot/filedepot/pkg/types"
	"github.com/filedepot/filedepot/pkg/utils"
)

func TestMain(m *testing.M) {
	utils.SetupIDWorker(1)
	os.Exit(m.Run())
}

// 包内共享的内存实现，模拟存储与对象后端的行为

type memScanQueue struct {
	mu   sync.Mutex
	jobs map[string]*types.ScanJob
}

func newMemScanQueue() *memScanQueue {
	return &memScanQueue{jobs: make(map[string]*types.ScanJob)}
}

func (q *memScanQueue) add(job types.ScanJob) {
	q.mu.Lock()
	defer q.mu.Unlock()
	cp := job
	q.jobs[job.ID] = &cp
}

func (q *memScanQueue) get(id string) types.ScanJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	return *q.jobs[id]
}

func (q *memScanQueue) ClaimNext(ctx context.Context, now int64) (*types.ScanJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, job := range q.jobs {
		if job.Status == types.SCAN_JOB_STATUS_PENDING && job.NextRetryAt <= now {
			job.Status = types.SCAN_JOB_STATUS_SCANNING
			job.LastAttempt = now
			cp := *job
			return &cp, nil
		}
	}
	return nil, nil
}

func (q *memScanQueue) Complete(ctx context.Context, id, status string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok || job.Status != types.SCAN_JOB_STATUS_SCANNING {
		return false, nil
	}
	job.Status = status
	return true, nil
}

func (q *memScanQueue) Requeue(ctx context.Context, id string, retryCount int, nextRetryAt int64, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job := q.jobs[id]
	job.Status = types.SCAN_JOB_STATUS_PENDING
	job.RetryCount = retryCount
	job.NextRetryAt = nextRetryAt
	job.Error = errMsg
	return nil
}

func (q *memScanQueue) MarkFailed(ctx context.Context, id string, retryCount int, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job := q.jobs[id]
	job.Status = types.SCAN_JOB_STATUS_FAILED
	job.RetryCount = retryCount
	job.Error = errMsg
	return nil
}

type memFiles struct {
	mu    sync.Mutex
	files map[string]*types.FileRecord
}

func newMemFiles() *memFiles {
	return &memFiles{files: make(map[string]*types.FileRecord)}
}

func (m *memFiles) add(file types.FileRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := file
	m.files[file.ID] = &cp
}

func (m *memFiles) get(id string) types.FileRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.files[id]
}

func (m *memFiles) GetFile(ctx context.Context, tenantID, id string) (*types.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	file, ok := m.files[id]
	if !ok || file.TenantID != tenantID {
		return nil, nil
	}
	cp := *file
	return &cp, nil
}

func (m *memFiles) UpdateScanStatus(ctx context.Context, tenantID, id, fromStatus, toStatus string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	file, ok := m.files[id]
	if !ok || file.ScanStatus != fromStatus {
		return false, nil
	}
	file.ScanStatus = toStatus
	return true, nil
}

func (m *memFiles) SetVisibility(ctx context.Context, tenantID, id, visibility string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[id].Visibility = visibility
	return nil
}

func (m *memFiles) SoftDelete(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[id].Deleted = true
	return nil
}

type memResults struct {
	mu   sync.Mutex
	list []types.ScanResult
}

func (m *memResults) Create(ctx context.Context, data types.ScanResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.list = append(m.list, data)
	return nil
}

type memQuarantine struct {
	mu   sync.Mutex
	list []types.QuarantinedFile
}

func (m *memQuarantine) Create(ctx context.Context, data types.QuarantinedFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.list = append(m.list, data)
	return nil
}

type memOffenses struct {
	mu     sync.Mutex
	counts map[string]int
}

func newMemOffenses() *memOffenses {
	return &memOffenses{counts: make(map[string]int)}
}

func (m *memOffenses) Increment(ctx context.Context, tenantID, userID string, at int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[tenantID+"/"+userID]++
	return m.counts[tenantID+"/"+userID], nil
}

type memAccounts struct {
	mu       sync.Mutex
	statuses map[string]string
	admins   []*types.User
}

func newMemAccounts() *memAccounts {
	return &memAccounts{statuses: make(map[string]string)}
}

func (m *memAccounts) UpdateStatus(ctx context.Context, tenantID, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[id] = status
	return nil
}

func (m *memAccounts) ListAdmins(ctx context.Context, tenantID string) ([]*types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.admins, nil
}

type memPolicies struct {
	policy *types.TenantPolicy
}

func (m *memPolicies) GetPolicy(ctx context.Context, id string) (*types.TenantPolicy, error) {
	if m.policy == nil || m.policy.TenantID != id {
		return nil, nil
	}
	cp := *m.policy
	return &cp, nil
}

type memReplicationQueue struct {
	mu   sync.Mutex
	jobs []types.ReplicationJob
}

func (m *memReplicationQueue) Enqueue(ctx context.Context, job types.ReplicationJob) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, exist := range m.jobs {
		if exist.StoragePath == job.StoragePath && exist.Operation == job.Operation &&
			(exist.Status == types.REPLICATION_JOB_STATUS_PENDING || exist.Status == types.REPLICATION_JOB_STATUS_PROCESSING) {
			return false, nil
		}
	}
	m.jobs = append(m.jobs, job)
	return true, nil
}

// memObjects 内存对象存储
type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	getErr  error
	putErr  error
}

var _ objstorage.Store = (*memObjects)(nil)

func newMemObjects() *memObjects {
	return &memObjects{objects: make(map[string][]byte)}
}

func (m *memObjects) GetObject(ctx context.Context, path string) (*objstorage.ObjectResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	content, ok := m.objects[path]
	if !ok {
		return nil, fmt.Errorf("object %s not found", path)
	}
	return &objstorage.ObjectResult{Content: content}, nil
}

func (m *memObjects) PutObject(ctx context.Context, path string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.objects[path] = content
	return nil
}

func (m *memObjects) DeleteObject(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, path)
	return nil
}

func (m *memObjects) has(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[path]
	return ok
}

// fakeScanner 按预设结果应答
type fakeScanner struct {
	report *srv.ScanReport
	err    error
	calls  int
}

func (s *fakeScanner) Scan(ctx context.Context, name string, content []byte) (*srv.ScanReport, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.report, nil
}

// recordNotifier 记录所有投递的事件
type recordNotifier struct {
	mu     sync.Mutex
	events []types.EventType
}

func (n *recordNotifier) Publish(ctx context.Context, eventType types.EventType, tenantID string, recipients []string, payload map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, eventType)
}

func (n *recordNotifier) has(eventType types.EventType) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.events {
		if e == eventType {
			return true
		}
	}
	return false
}
