package errcode

// 错误码约定（随响应信封的 error_code 字段返回）：
// - 0：无错误
// - 4xxx：调用方可修正的错误，后两位与 HTTP 状态码对应
// - 5xxx：服务端错误或尚未实现的能力
const (
	OK              = 0
	InvalidArgument = 4000
	Unauthorized    = 4001
	Forbidden       = 4003
	ResourceMissing = 4004
	Conflict        = 4009
	PayloadTooLarge = 4013
	RateLimited     = 4029
	SystemError     = 5000
	NotImplemented  = 5001
	Unavailable     = 5003
)
