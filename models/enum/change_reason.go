package enum

// ChangeReason 表示購物車變更的原因
type ChangeReason string

const (
	ChangeReasonSet       ChangeReason = "set"       // 直接設定數量
	ChangeReasonIncrement ChangeReason = "increment" // 點擊 +
	ChangeReasonDecrement ChangeReason = "decrement" // 點擊 -
	ChangeReasonReplace   ChangeReason = "replace"   // 覆寫整個購物車
	ChangeReasonClear     ChangeReason = "clear"     // 結帳後清空
)
