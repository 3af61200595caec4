// Package gate 实现文件访问的纯判定逻辑。
// 判定不产生任何副作用；过期状态的持久化由调用方完成。
package gate

import (
	"time"

	"go-file-share/internal/model"

	"golang.org/x/crypto/bcrypt"
)

// Code 是判定结果的分类，处理器据此映射HTTP状态码
type Code int

const (
	Allow Code = iota
	NotFound
	Forbidden
	Unauthorized
	Gone
)

// Decision 携带判定分类与面向客户端的原因串
type Decision struct {
	Code   Code
	Reason string
}

var (
	decisionAllow       = Decision{Code: Allow}
	decisionNotFound    = Decision{Code: NotFound, Reason: "file not found"}
	decisionInactive    = Decision{Code: Forbidden, Reason: "not available"}
	decisionExpired     = Decision{Code: Gone, Reason: "expired"}
	decisionNeedPass    = Decision{Code: Unauthorized, Reason: "password required"}
	decisionWrongPass   = Decision{Code: Forbidden, Reason: "incorrect password"}
)

// Evaluate 按固定顺序执行全部检查。
// 顺序不可调整：过期且受密码保护的文件必须报告"expired"，
// 避免提示接收者输入一个永远无法成功的密码。
func Evaluate(f *model.File, suppliedPassword string, now time.Time) Decision {
	if d := EvaluatePublic(f, now); d.Code != Allow {
		return d
	}
	if f.HasPassword() {
		if suppliedPassword == "" {
			return decisionNeedPass
		}
		if bcrypt.CompareHashAndPassword([]byte(f.PasswordHash), []byte(suppliedPassword)) != nil {
			return decisionWrongPass
		}
	}
	return decisionAllow
}

// EvaluatePublic 只执行可见性检查（1-4），不校验密码。
// 公开预览需要暴露"受密码保护"这一事实而无需先提供密码。
func EvaluatePublic(f *model.File, now time.Time) Decision {
	if f == nil {
		return decisionNotFound
	}
	// 已删除的记录对客户端与不存在的记录不可区分
	if f.Status == model.StatusDeleted {
		return decisionNotFound
	}
	if f.Status == model.StatusInactive {
		return decisionInactive
	}
	if f.Status == model.StatusExpired || f.IsExpired(now) {
		return decisionExpired
	}
	return decisionAllow
}
