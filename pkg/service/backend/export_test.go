package backend

var (
	ListQuery   = listQuery
	ErrorDetail = errorDetail
)
