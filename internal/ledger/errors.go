package ledger

import "errors"

// 资金引擎统一错误分类
// 所有仓储与服务层只返回这里定义的哨兵错误（或其包装），
// handler 层通过 errors.Is 映射为业务码
var (
	ErrInsufficientFunds      = errors.New("余额不足")
	ErrInsufficientPoints     = errors.New("积分不足")
	ErrInvalidState           = errors.New("状态不合法")
	ErrAlreadyResolved        = errors.New("已审核，请勿重复操作")
	ErrNotFound               = errors.New("记录不存在")
	ErrConcurrentModification = errors.New("并发冲突，请重试")
)
