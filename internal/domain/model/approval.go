package model

import (
	"encoding/json"
	"time"
)

// Стадии чеклиста, в порядке прохождения.
const (
	// StageAssembly — сборка.
	StageAssembly = "ASSEMBLY"
	// StageVerification — верификация (вторая ступень, после одобренной сборки).
	StageVerification = "VERIFICATION"
)

// Stages — упорядоченный список стадий.
var Stages = []string{StageAssembly, StageVerification}

// IsValidStage проверяет допустимость кода стадии.
func IsValidStage(s string) bool {
	return s == StageAssembly || s == StageVerification
}

// PreviousStage возвращает предыдущую стадию или "" для первой.
func PreviousStage(s string) string {
	if s == StageVerification {
		return StageAssembly
	}
	return ""
}

// Статусы записи верификации. PENDING — единственный нетерминальный.
const (
	ApprovalStatusPending  = "PENDING"
	ApprovalStatusApproved = "APPROVED"
	ApprovalStatusRejected = "REJECTED"
)

// Approval — запись верификации сервера на одной стадии чеклиста.
// Хранится в таблице approvals. На пару (сервер, стадия) допускается не
// более одной записи в статусе PENDING (частичный уникальный индекс).
// Терминальные записи (APPROVED/REJECTED) неизменяемы; повторная подача
// после отклонения создаёт новую запись, отклонённая остаётся историей.
type Approval struct {
	// ID — UUID записи
	ID string
	// ServerID — сервер
	ServerID string
	// StageCode — стадия (ASSEMBLY, VERIFICATION)
	StageCode string
	// Status — статус (PENDING, APPROVED, REJECTED)
	Status string
	// SubmittedBy — кто подал на верификацию (sub из JWT)
	SubmittedBy string
	// SubmittedAt — время подачи
	SubmittedAt time.Time
	// ReviewedBy — кто рассмотрел (nil пока PENDING)
	ReviewedBy *string
	// ReviewedAt — время решения
	ReviewedAt *time.Time
	// Comment — комментарий проверяющего (обязателен при отклонении)
	Comment *string
	// ChecklistSnapshot — снимок чеклиста стадии на момент подачи
	ChecklistSnapshot json.RawMessage
	// CreatedAt — время создания записи
	CreatedAt time.Time
}

// ApprovalWithServer — запись верификации вместе с кратким описанием сервера.
// Используется в очереди верификации.
type ApprovalWithServer struct {
	Approval
	Server ServerRef
}

// StageCompletion — результат проверки готовности стадии.
type StageCompletion struct {
	// StageCode — стадия
	StageCode string
	// Complete — стадия одобрена (последняя запись APPROVED)
	Complete bool
	// ChecklistTotal — всего обязательных пунктов чеклиста стадии
	ChecklistTotal int
	// ChecklistCompleted — выполнено обязательных пунктов
	ChecklistCompleted int
	// Remaining — заголовки невыполненных обязательных пунктов
	Remaining []string
	// LatestApproval — последняя запись верификации стадии (nil если не было)
	LatestApproval *Approval
	// CanSubmit — можно ли подать: чеклист выполнен и нет PENDING записи
	CanSubmit bool
}

// ApprovalStats — сводка по верификациям для панели инспектора.
type ApprovalStats struct {
	// Pending — записей в очереди
	Pending int
	// ApprovedToday — одобрено с начала суток
	ApprovedToday int
	// RejectedToday — отклонено с начала суток
	RejectedToday int
	// AvgReviewMinutes — средняя длительность рассмотрения за 7 дней
	AvgReviewMinutes int
}
