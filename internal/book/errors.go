package book

import "errors"

// 领域错误：调用方传入非法参数或在非法状态下修改订单属于调用方bug，
// 以类型化错误返回，不做静默恢复。
var (
	ErrPriceNotPositive    = errors.New("price must be positive")
	ErrQuantityNotPositive = errors.New("quantity must be positive")
	ErrLeverageNotPositive = errors.New("leverage must be positive")
	ErrIllegalStateChange  = errors.New("illegal order state change")
	ErrInvalidPriceRange   = errors.New("invalid price range")
)
