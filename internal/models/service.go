// Package models defines GORM data models for Skywatch.
package models

import (
	"time"

	"gorm.io/gorm"
)

// ServiceStatus is the lifecycle state of a registered service.
type ServiceStatus string

const (
	ServiceActive   ServiceStatus = "active"
	ServiceInactive ServiceStatus = "inactive"
)

// Service is a registry entry for a unit under observation: a microservice,
// a container or a pod, identified by its unique name. It is created on
// first registration; LastSeen is touched every time metrics are collected.
type Service struct {
	gorm.Model

	Name     string        `gorm:"uniqueIndex;not null" json:"name"`
	Type     string        `gorm:"default:'unknown'" json:"type"`
	Status   ServiceStatus `gorm:"index;default:'active'" json:"status"`
	LastSeen time.Time     `json:"last_seen"`
}
