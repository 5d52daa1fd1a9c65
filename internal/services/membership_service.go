package services

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"gazette-chat/internal/domain"
	"gazette-chat/internal/events"
	"gazette-chat/internal/repository"
	gazette_errors "gazette-chat/pkg/errors"
	"gazette-chat/pkg/logger"
)

// MembershipService owns group lifecycle: creation, participant add/remove,
// role changes and the ownership-succession policy. Every multi-row mutation
// runs inside one transaction so no caller ever observes an ownerless or
// empty-but-existing group.
type MembershipService struct {
	db        *gorm.DB
	users     repository.UserRepository
	publisher events.Publisher
	log       *logger.Logger
}

func NewMembershipService(db *gorm.DB, publisher events.Publisher, log *logger.Logger) *MembershipService {
	return &MembershipService{
		db:        db,
		users:     repository.NewUserRepository(db),
		publisher: publisher,
		log:       log,
	}
}

type CreateGroupInput struct {
	Name           string
	Description    string
	ImageURL       string
	ParticipantIDs []uuid.UUID
}

func (s *MembershipService) CreateGroup(ctx context.Context, creatorID uuid.UUID, in CreateGroupInput) (domain.Conversation, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || len(in.ParticipantIDs) == 0 {
		return domain.Conversation{}, gazette_errors.ErrValidation
	}

	candidates := make([]uuid.UUID, 0, len(in.ParticipantIDs))
	seen := map[uuid.UUID]struct{}{creatorID: {}}
	for _, id := range in.ParticipantIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		candidates = append(candidates, id)
	}
	if len(candidates) == 0 {
		return domain.Conversation{}, gazette_errors.ErrValidation
	}

	// A group may only be formed with mutual followers of the creator.
	for _, id := range candidates {
		mutual, err := s.users.IsMutualFollow(ctx, creatorID, id)
		if err != nil {
			return domain.Conversation{}, err
		}
		if !mutual {
			return domain.Conversation{}, gazette_errors.ErrForbidden
		}
	}

	now := time.Now()
	conv := domain.Conversation{
		ID:          uuid.New(),
		Kind:        domain.ConversationKindGroup,
		Name:        sql.NullString{String: name, Valid: true},
		Description: nullString(in.Description),
		ImageURL:    nullString(in.ImageURL),
		CreatorID:   creatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewConversationRepository(tx)
		if err := repo.Create(ctx, &conv); err != nil {
			return err
		}
		owner := domain.Participant{
			ConversationID: conv.ID,
			UserID:         creatorID,
			Role:           domain.ParticipantRoleOwner,
			JoinedAt:       now,
		}
		if err := repo.AddParticipant(ctx, &owner); err != nil {
			return err
		}
		for _, id := range candidates {
			p := domain.Participant{
				ConversationID: conv.ID,
				UserID:         id,
				Role:           domain.ParticipantRoleMember,
				JoinedAt:       now,
			}
			if err := repo.AddParticipant(ctx, &p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Conversation{}, err
	}

	created, err := repository.NewConversationRepository(s.db).GetByID(ctx, conv.ID)
	if err != nil {
		return domain.Conversation{}, err
	}

	if env, err := events.NewEnvelope(events.EventTypeConversationCreated, events.AggregateTypeConversation, conv.ID.String(), "", created); err == nil {
		notify(ctx, s.publisher, s.log, events.ConversationChannel(conv.ID.String()), env)
	}
	return created, nil
}

func (s *MembershipService) AddParticipants(ctx context.Context, groupID, requesterID uuid.UUID, newUserIDs []uuid.UUID) (domain.Conversation, error) {
	repo := repository.NewConversationRepository(s.db)

	conv, err := repo.GetByID(ctx, groupID)
	if err != nil {
		return domain.Conversation{}, err
	}
	if !conv.IsGroup() {
		return domain.Conversation{}, gazette_errors.ErrValidation
	}
	if err := s.requireManager(ctx, repo, groupID, requesterID); err != nil {
		return domain.Conversation{}, err
	}

	present := make(map[uuid.UUID]struct{}, len(conv.Participants))
	for _, p := range conv.Participants {
		present[p.UserID] = struct{}{}
	}

	// Ids already present are skipped silently.
	additions := make([]uuid.UUID, 0, len(newUserIDs))
	for _, id := range newUserIDs {
		if _, ok := present[id]; ok {
			continue
		}
		present[id] = struct{}{}
		additions = append(additions, id)
	}
	if len(additions) == 0 {
		return domain.Conversation{}, gazette_errors.ErrValidation
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := repository.NewConversationRepository(tx)
		for _, id := range additions {
			p := domain.Participant{
				ConversationID: groupID,
				UserID:         id,
				Role:           domain.ParticipantRoleMember,
				JoinedAt:       now,
			}
			if err := txRepo.AddParticipant(ctx, &p); err != nil {
				return err
			}
		}
		return txRepo.Touch(ctx, groupID, now)
	})
	if err != nil {
		return domain.Conversation{}, err
	}

	updated, err := repo.GetByID(ctx, groupID)
	if err != nil {
		return domain.Conversation{}, err
	}

	if env, err := events.NewEnvelope(events.EventTypeParticipantAdded, events.AggregateTypeParticipant, groupID.String(), "", additions); err == nil {
		notify(ctx, s.publisher, s.log, events.ConversationChannel(groupID.String()), env)
	}
	return updated, nil
}

// RemoveResult reports the outcome of a removal: either the surviving group
// or the fact that it dissolved.
type RemoveResult struct {
	Deleted      bool
	Conversation domain.Conversation
	NewOwnerID   uuid.NullUUID
}

func (s *MembershipService) RemoveParticipant(ctx context.Context, groupID, requesterID, targetID uuid.UUID) (RemoveResult, error) {
	repo := repository.NewConversationRepository(s.db)

	conv, err := repo.GetByID(ctx, groupID)
	if err != nil {
		return RemoveResult{}, err
	}
	if !conv.IsGroup() {
		return RemoveResult{}, gazette_errors.ErrValidation
	}

	// Self-leave is always allowed; removing someone else needs a managing role.
	if requesterID != targetID {
		if err := s.requireManager(ctx, repo, groupID, requesterID); err != nil {
			return RemoveResult{}, err
		}
	}

	var result RemoveResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := repository.NewConversationRepository(tx)

		departing, err := txRepo.GetParticipant(ctx, groupID, targetID)
		if err != nil {
			return err
		}
		if err := txRepo.RemoveParticipant(ctx, groupID, targetID); err != nil {
			return err
		}

		remaining, err := txRepo.GetParticipants(ctx, groupID)
		if err != nil {
			return err
		}
		if len(remaining) == 0 {
			// Last member left: dissolve the group and everything under it.
			if err := txRepo.DeleteCascade(ctx, groupID); err != nil {
				return err
			}
			result = RemoveResult{Deleted: true}
			return nil
		}

		if departing.Role == domain.ParticipantRoleOwner {
			successor := pickSuccessor(remaining)
			if err := txRepo.UpdateParticipantRole(ctx, groupID, successor.UserID, domain.ParticipantRoleOwner); err != nil {
				return err
			}
			result.NewOwnerID = uuid.NullUUID{UUID: successor.UserID, Valid: true}
		}
		return txRepo.Touch(ctx, groupID, time.Now())
	})
	if err != nil {
		return RemoveResult{}, err
	}

	channel := events.ConversationChannel(groupID.String())
	if result.Deleted {
		if env, err := events.NewEnvelope(events.EventTypeConversationDeleted, events.AggregateTypeConversation, groupID.String(), "", nil); err == nil {
			notify(ctx, s.publisher, s.log, channel, env)
		}
		return result, nil
	}

	updated, err := repo.GetByID(ctx, groupID)
	if err != nil {
		return RemoveResult{}, err
	}
	result.Conversation = updated

	eventType := events.EventTypeParticipantRemoved
	if requesterID == targetID {
		eventType = events.EventTypeParticipantLeft
	}
	if env, err := events.NewEnvelope(eventType, events.AggregateTypeParticipant, groupID.String(), "", targetID); err == nil {
		notify(ctx, s.publisher, s.log, channel, env)
	}
	if result.NewOwnerID.Valid {
		if env, err := events.NewEnvelope(events.EventTypeOwnershipTransferred, events.AggregateTypeParticipant, groupID.String(), "", result.NewOwnerID.UUID); err == nil {
			notify(ctx, s.publisher, s.log, channel, env)
		}
	}
	return result, nil
}

type UpdateGroupMetadataInput struct {
	Name        *string
	Description *string
	ImageURL    *string
}

func (s *MembershipService) UpdateGroupMetadata(ctx context.Context, groupID, requesterID uuid.UUID, in UpdateGroupMetadataInput) (domain.Conversation, error) {
	if in.Name == nil && in.Description == nil && in.ImageURL == nil {
		return domain.Conversation{}, gazette_errors.ErrValidation
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return domain.Conversation{}, gazette_errors.ErrValidation
	}

	repo := repository.NewConversationRepository(s.db)
	conv, err := repo.GetByID(ctx, groupID)
	if err != nil {
		return domain.Conversation{}, err
	}
	if !conv.IsGroup() {
		return domain.Conversation{}, gazette_errors.ErrValidation
	}
	if err := s.requireManager(ctx, repo, groupID, requesterID); err != nil {
		return domain.Conversation{}, err
	}

	if err := repo.UpdateMetadata(ctx, groupID, in.Name, in.Description, in.ImageURL); err != nil {
		return domain.Conversation{}, err
	}

	updated, err := repo.GetByID(ctx, groupID)
	if err != nil {
		return domain.Conversation{}, err
	}
	if env, err := events.NewEnvelope(events.EventTypeConversationUpdated, events.AggregateTypeConversation, groupID.String(), "", updated); err == nil {
		notify(ctx, s.publisher, s.log, events.ConversationChannel(groupID.String()), env)
	}
	return updated, nil
}

// SetParticipantRole is the explicit admin-only role change. The owner role
// is never assigned here; it moves only through succession.
func (s *MembershipService) SetParticipantRole(ctx context.Context, groupID, requesterID, targetID uuid.UUID, role domain.ParticipantRole) error {
	if !role.Valid() || role == domain.ParticipantRoleOwner {
		return gazette_errors.ErrValidation
	}

	repo := repository.NewConversationRepository(s.db)
	conv, err := repo.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if !conv.IsGroup() {
		return gazette_errors.ErrValidation
	}
	if err := s.requireManager(ctx, repo, groupID, requesterID); err != nil {
		return err
	}

	target, err := repo.GetParticipant(ctx, groupID, targetID)
	if err != nil {
		return err
	}
	if target.Role == domain.ParticipantRoleOwner {
		return gazette_errors.ErrForbidden
	}

	if err := repo.UpdateParticipantRole(ctx, groupID, targetID, role); err != nil {
		return err
	}
	if env, err := events.NewEnvelope(events.EventTypeParticipantRoleChanged, events.AggregateTypeParticipant, groupID.String(), "", targetID); err == nil {
		notify(ctx, s.publisher, s.log, events.ConversationChannel(groupID.String()), env)
	}
	return nil
}

func (s *MembershipService) SetMuted(ctx context.Context, conversationID, userID uuid.UUID, muted bool) error {
	repo := repository.NewConversationRepository(s.db)
	if _, err := repo.GetParticipant(ctx, conversationID, userID); err != nil {
		return gazette_errors.ErrForbidden
	}
	return repo.SetParticipantMuted(ctx, conversationID, userID, muted)
}

func (s *MembershipService) SetNickname(ctx context.Context, conversationID, userID uuid.UUID, nickname string) error {
	repo := repository.NewConversationRepository(s.db)
	if _, err := repo.GetParticipant(ctx, conversationID, userID); err != nil {
		return gazette_errors.ErrForbidden
	}
	return repo.SetParticipantNickname(ctx, conversationID, userID, nickname)
}

func (s *MembershipService) GetConversation(ctx context.Context, conversationID, requesterID uuid.UUID) (domain.Conversation, error) {
	repo := repository.NewConversationRepository(s.db)
	conv, err := repo.GetByID(ctx, conversationID)
	if err != nil {
		return domain.Conversation{}, err
	}
	ok, err := repo.IsParticipant(ctx, conversationID, requesterID)
	if err != nil {
		return domain.Conversation{}, err
	}
	if !ok {
		return domain.Conversation{}, gazette_errors.ErrForbidden
	}
	return conv, nil
}

func (s *MembershipService) ListConversations(ctx context.Context, userID uuid.UUID, page, limit int) ([]domain.Conversation, int64, error) {
	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	return repository.NewConversationRepository(s.db).GetUserConversations(ctx, userID, page, limit)
}

func (s *MembershipService) requireManager(ctx context.Context, repo repository.ConversationRepository, conversationID, userID uuid.UUID) error {
	p, err := repo.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		return gazette_errors.ErrForbidden
	}
	if !p.Role.CanManageGroup() {
		return gazette_errors.ErrForbidden
	}
	return nil
}

// pickSuccessor implements the succession order: first admin by join time,
// else the longest-standing remaining member. GetParticipants already orders
// by joined_at so the choice is deterministic.
func pickSuccessor(remaining []domain.Participant) domain.Participant {
	for _, p := range remaining {
		if p.Role == domain.ParticipantRoleAdmin {
			return p
		}
	}
	return remaining[0]
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
