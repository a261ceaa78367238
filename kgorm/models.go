package kgorm

import (
	"encoding/json"
	"time"

	"github.com/getkayan/kayan-link/core/audit"
	"github.com/getkayan/kayan-link/core/identity"
)

type gormLoginMethod struct {
	ID     string `gorm:"primaryKey;size:128"`
	AppID  string `gorm:"primaryKey;size:64;index:idx_lm_app_email;index:idx_lm_app_phone;index:idx_lm_app_tp;index:idx_lm_app_primary"`
	Recipe string `gorm:"size:32"`

	Email            string `gorm:"size:256;index:idx_lm_app_email"`
	PhoneNumber      string `gorm:"size:64;index:idx_lm_app_phone"`
	ThirdPartyID     string `gorm:"size:64;index:idx_lm_app_tp"`
	ThirdPartyUserID string `gorm:"size:256;index:idx_lm_app_tp"`

	PrimaryUserID string        `gorm:"size:128;index:idx_lm_app_primary"`
	TenantIDs     identity.JSON `gorm:"type:json"`
	TimeJoined    time.Time
	Verified      bool
}

func (gormLoginMethod) TableName() string { return "login_methods" }

type gormUserIDMapping struct {
	AppID      string    `gorm:"primaryKey;size:64"`
	ExternalID string    `gorm:"primaryKey;size:128"`
	InternalID string    `gorm:"size:128;index:idx_uim_app_internal,unique"`
	CreatedAt  time.Time `json:"-"`
}

func (gormUserIDMapping) TableName() string { return "user_id_mappings" }

type gormFeatureFlag struct {
	AppID     string `gorm:"primaryKey;size:64"`
	Feature   string `gorm:"primaryKey;size:64"`
	Enabled   bool
	UpdatedAt time.Time
}

func (gormFeatureFlag) TableName() string { return "feature_flags" }

type gormAuditEvent struct {
	ID        string `gorm:"primaryKey"`
	Type      string `gorm:"index"`
	AppID     string `gorm:"index"`
	SubjectID string `gorm:"index"`
	PrimaryID string `gorm:"index"`
	Status    string `gorm:"index"`
	Message   string
	Metadata  identity.JSON `gorm:"type:json"`
	CreatedAt time.Time     `gorm:"index"`
}

func (gormAuditEvent) TableName() string { return "audit_events" }

func fromCoreLoginMethod(lm *identity.LoginMethod) *gormLoginMethod {
	row := &gormLoginMethod{
		ID:            lm.ID,
		AppID:         lm.AppID,
		Recipe:        string(lm.Recipe),
		Email:         lm.Email,
		PhoneNumber:   lm.PhoneNumber,
		PrimaryUserID: lm.PrimaryUserID,
		TimeJoined:    lm.TimeJoined,
		Verified:      lm.Verified,
	}
	if lm.ThirdParty != nil {
		row.ThirdPartyID = lm.ThirdParty.ProviderID
		row.ThirdPartyUserID = lm.ThirdParty.UserID
	}
	if len(lm.TenantIDs) > 0 {
		if b, err := json.Marshal(lm.TenantIDs); err == nil {
			row.TenantIDs = identity.JSON(b)
		}
	}
	return row
}

func toCoreLoginMethod(row *gormLoginMethod) *identity.LoginMethod {
	lm := &identity.LoginMethod{
		ID:     row.ID,
		AppID:  row.AppID,
		Recipe: identity.RecipeID(row.Recipe),
		AccountInfo: identity.AccountInfo{
			Email:       row.Email,
			PhoneNumber: row.PhoneNumber,
		},
		PrimaryUserID: row.PrimaryUserID,
		TimeJoined:    row.TimeJoined,
		Verified:      row.Verified,
	}
	if row.ThirdPartyID != "" || row.ThirdPartyUserID != "" {
		lm.ThirdParty = &identity.ThirdParty{
			ProviderID: row.ThirdPartyID,
			UserID:     row.ThirdPartyUserID,
		}
	}
	if len(row.TenantIDs) > 0 {
		_ = json.Unmarshal(row.TenantIDs, &lm.TenantIDs)
	}
	return lm
}

func fromCoreAuditEvent(e *audit.AuditEvent) *gormAuditEvent {
	if e == nil {
		return nil
	}
	return &gormAuditEvent{
		ID:        e.ID,
		Type:      e.Type,
		AppID:     e.AppID,
		SubjectID: e.SubjectID,
		PrimaryID: e.PrimaryID,
		Status:    e.Status,
		Message:   e.Message,
		Metadata:  e.Metadata,
		CreatedAt: e.CreatedAt,
	}
}

func toCoreAuditEvent(e *gormAuditEvent) audit.AuditEvent {
	return audit.AuditEvent{
		ID:        e.ID,
		Type:      e.Type,
		AppID:     e.AppID,
		SubjectID: e.SubjectID,
		PrimaryID: e.PrimaryID,
		Status:    e.Status,
		Message:   e.Message,
		Metadata:  e.Metadata,
		CreatedAt: e.CreatedAt,
	}
}
