package models

// Priority is the closed set of task priorities.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Priorities lists every valid priority from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// Valid reports whether p is one of Priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// SprintStatus is a sprint's lifecycle state: planning → active → completed.
type SprintStatus string

const (
	SprintPlanning  SprintStatus = "planning"
	SprintActive    SprintStatus = "active"
	SprintCompleted SprintStatus = "completed"
)

// Valid reports whether s is a known sprint status.
func (s SprintStatus) Valid() bool {
	switch s {
	case SprintPlanning, SprintActive, SprintCompleted:
		return true
	}
	return false
}

// ActivityAction is the kind of an activity log entry.
type ActivityAction string

const (
	ActionCreated   ActivityAction = "created"
	ActionUpdated   ActivityAction = "updated"
	ActionMoved     ActivityAction = "moved"
	ActionCommented ActivityAction = "commented"
	ActionCompleted ActivityAction = "completed"
)

// Task status defaults.
const (
	TaskStatusTodo = "to-do"
)

// Team member roles.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)
