package i18n

var ALLOW_LANG = map[string]bool{
	"en":    true,
	"zh-CN": true,
}

const DEFAULT_LANG = "en"

const (
	ERROR_INTERNAL          = "error.internal"
	ERROR_NOT_FOUND         = "error.notfound"
	ERROR_INVALIDARGUMENT   = "error.invalidargument"
	ERROR_PERMISSION_DENIED = "error.permission.denied"
	ERROR_UNAUTHORIZED      = "error.unauthorized"
	ERROR_EXIST             = "error.exist"
	ERROR_FORBIDDEN         = "error.forbidden"
	ERROR_TOO_MANY_REQUESTS = "error.tooManyRequests"
	ERROR_MORE_TAHN_MAX     = "error.moreThanMax"

	ERROR_FILE_LOCKED            = "error.file.locked"
	ERROR_FILE_LOCK_REQUIRED     = "error.file.lock.required"
	ERROR_FILE_IMMUTABLE         = "error.file.immutable"
	ERROR_FILE_NOT_AVAILABLE     = "error.file.not_available"
	ERROR_EXTENSION_BLOCKED      = "error.file.extension.blocked"
	ERROR_FILE_SIZE_EXCEEDED     = "error.file.size.exceeded"
	ERROR_QUARANTINE_TERMINAL    = "error.quarantine.terminal"
	ERROR_DUPLICATE_LIVE_JOB     = "error.job.duplicate"
	ERROR_JOB_NOT_REPLAYABLE     = "error.job.not_replayable"
	ERROR_TENANT_SCOPE_MISMATCH  = "error.tenant.scope.mismatch"
	ERROR_ACCOUNT_SUSPENDED      = "error.account.suspended"
	ERROR_LOCK_PASSWORD_INVALID  = "error.lock.password.invalid"
	ERROR_LOCK_HELD_BY_OTHER     = "error.lock.held_by_other"
	ERROR_VERSION_PARENT_MISSING = "error.version.parent.missing"

	ERROR_INVALID_TOKEN = "error.invalid.token"
)
