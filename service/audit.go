package service

import (
	"github.com/andersonmia/nbr/logger"
	"github.com/andersonmia/nbr/model"
	"github.com/andersonmia/nbr/repository"

	"github.com/sirupsen/logrus"
)

// AuditTrail records every attempted operation, successful or not. It is
// fire-and-forget from the caller's perspective: Record never returns an
// error, and a failing sink degrades to the application log.
type AuditTrail struct {
	repo repository.IAuditRepository
}

func NewAuditTrail(repo repository.IAuditRepository) *AuditTrail {
	return &AuditTrail{repo: repo}
}

func (a *AuditTrail) Record(action, context string) {
	entry := &model.AuditEntry{
		Action:  action,
		Context: context,
	}

	if err := a.repo.InsertEntry(entry); err != nil {
		logger.Log.WithError(err).WithFields(logrus.Fields{
			"action":  action,
			"context": context,
		}).Error("Failed to persist audit entry")
	}
}
