package types

const NO_PAGINATION uint64 = 0

const (
	DEFAULT_PAGE      uint64 = 1
	DEFAULT_PAGE_SIZE uint64 = 20
)
