package apperr

import "errors"

// 错误类别。业务错误通过 fmt.Errorf("%w: ...", ErrXxx) 包装其中之一，
// 由 util.HandleError 统一映射为 HTTP 状态码。
var (
	ErrValidation  = errors.New("validation failed")
	ErrConflict    = errors.New("conflict")
	ErrNotFound    = errors.New("not found")
	ErrForbidden   = errors.New("forbidden")
	ErrUnavailable = errors.New("unavailable")

	// ErrOptimisticLock 条件更新未命中任何行：记录已被其他请求修改
	ErrOptimisticLock = errors.New("record was modified by another operation, please retry")
)

// Kind 返回 err 所属的错误类别，未分类返回 nil
func Kind(err error) error {
	for _, k := range []error{ErrValidation, ErrConflict, ErrNotFound, ErrForbidden, ErrUnavailable, ErrOptimisticLock} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
