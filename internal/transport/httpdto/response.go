package httpdto

// Response is the uniform envelope for every JSON endpoint. Code is the
// stable machine-readable error identifier clients branch on; Error is the
// human-readable detail and may change between releases.
type Response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func NewSuccessResponse[T any](data T) Response[T] {
	return Response[T]{Success: true, Data: data}
}

func NewErrorResponse(detail, code string) Response[any] {
	return Response[any]{Success: false, Error: detail, Code: code}
}
