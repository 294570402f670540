package types

import "fmt"

type TableName string

func (s TableName) Name() string {
	return fmt.Sprintf("%s%s", TABLE_PREFIX, s)
}

const TABLE_PREFIX = "depot_"

const (
	TABLE_FILE            = TableName("file")
	TABLE_FILE_GROUP      = TableName("file_group")
	TABLE_SCAN_JOB        = TableName("scan_job")
	TABLE_SCAN_RESULT     = TableName("scan_result")
	TABLE_QUARANTINE_FILE = TableName("quarantine_file")
	TABLE_MALWARE_COUNT   = TableName("user_malware_count")
	TABLE_REPLICATION_JOB = TableName("replication_job")
	TABLE_TENANT          = TableName("tenant")
	TABLE_USER            = TableName("user")
)
