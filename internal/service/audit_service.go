package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"assetlend/internal/model"
	"assetlend/internal/repository"
)

// AuditEntry is one side-effect record of a mutating operation.
type AuditEntry struct {
	ActorID  uuid.UUID // uuid.Nil for system actions
	Action   string
	Entity   string
	EntityID string
	ClientIP string
}

type AuditLogResponse struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	Username  string  `json:"username"`
	Action    string  `json:"action"`
	Entity    string  `json:"entity"`
	EntityID  string  `json:"entity_id"`
	IPAddress *string `json:"ip_address"`
	CreatedAt string  `json:"created_at"`
}

type AuditService interface {
	// Record is fire-and-forget: failures are logged, never returned.
	Record(ctx context.Context, e AuditEntry)
	List(ctx context.Context, skip, limit int) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	repo repository.AuditRepository
	log  *zap.Logger
}

// NewAuditService creates a new AuditService instance
func NewAuditService(repo repository.AuditRepository, log *zap.Logger) AuditService {
	return &auditService{repo: repo, log: log}
}

func (s *auditService) Record(ctx context.Context, e AuditEntry) {
	entry := &model.AuditLog{
		UserID:   uuidPtr(e.ActorID),
		Action:   e.Action,
		Entity:   e.Entity,
		EntityID: e.EntityID,
	}
	if e.ClientIP != "" {
		ip := e.ClientIP
		entry.IPAddress = &ip
	}
	// Never join the caller's transaction: an audit failure must not roll it back.
	if err := s.repo.Log(repository.Detach(context.WithoutCancel(ctx)), entry); err != nil {
		s.log.Warn("failed to write audit log",
			zap.String("actor", e.ActorID.String()),
			zap.String("action", e.Action),
			zap.String("entity", e.Entity),
			zap.String("entity_id", e.EntityID),
			zap.Error(err))
	}
}

func (s *auditService) List(ctx context.Context, skip, limit int) ([]AuditLogResponse, int64, error) {
	logs, total, err := s.repo.List(ctx, skip, limit)
	if err != nil {
		return nil, 0, notFoundOr(err, "Audit log", "list audit logs")
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		username := "System"
		userID := ""
		if l.User != nil {
			username = l.User.Username
		}
		if l.UserID != nil {
			userID = l.UserID.String()
		}
		res = append(res, AuditLogResponse{
			ID:        l.ID.String(),
			UserID:    userID,
			Username:  username,
			Action:    l.Action,
			Entity:    l.Entity,
			EntityID:  l.EntityID,
			IPAddress: l.IPAddress,
			CreatedAt: formatTime(l.CreatedAt),
		})
	}
	return res, total, nil
}
