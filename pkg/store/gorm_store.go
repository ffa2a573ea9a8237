package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"tripparty/pkg/domain"
)

const migrateLockID int64 = 52415241

// haversineSQL computes great-circle distance in kilometers between a fixed
// point and each row's coordinates. Parameter order: lat, lng, lat.
const haversineSQL = "(6371 * acos(least(1.0, greatest(-1.0, " +
	"cos(radians(?)) * cos(radians(latitude)) * cos(radians(longitude) - radians(?)) + " +
	"sin(radians(?)) * sin(radians(latitude))))))"

// statusRuleSQL re-derives party status after any participant-count or
// capacity change: full when at capacity, otherwise open unless manually
// closed.
const statusRuleSQL = `
	UPDATE party_models SET status = CASE
		WHEN current_participants >= max_participants THEN 'full'
		WHEN status <> 'closed' THEN 'open'
		ELSE status
	END
	WHERE id = ?`

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&UserModel{},
			&PartyModel{},
			&ParticipantModel{},
			&MessageModel{},
			&AdvisorMessageModel{},
			&DestinationModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// CreateUser registers a new user.
func (s *GormStore) CreateUser(u domain.User) error {
	model := userToModel(u)
	if err := s.db.Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateUsername
		}
		return err
	}
	return nil
}

// GetUserByUsername looks up a user by username.
func (s *GormStore) GetUserByUsername(username string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("username = ?", username).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// CreateParty stores a new party with the owner as first participant. The
// status rule applies on insert too: a single-seat party starts out full.
func (s *GormStore) CreateParty(p domain.Party) error {
	model, err := partyToModel(p)
	if err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		member := ParticipantModel{
			PartyID:   p.ID,
			UserID:    p.Owner.ID,
			CreatedAt: p.CreatedAt,
		}
		if err := tx.Create(&member).Error; err != nil {
			return err
		}
		return tx.Exec(statusRuleSQL, p.ID).Error
	})
}

// GetParty retrieves a party with owner and participants populated.
func (s *GormStore) GetParty(id string) (domain.Party, bool, error) {
	var model PartyModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Party{}, false, nil
		}
		return domain.Party{}, false, err
	}
	parties, err := s.populateParties([]PartyModel{model})
	if err != nil {
		return domain.Party{}, false, err
	}
	return parties[0], true, nil
}

// UpdateParty applies the patch and re-derives status from the updated
// capacity in the same transaction.
func (s *GormStore) UpdateParty(id string, patch PartyPatch) error {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if patch.Location != nil {
		updates["location"] = *patch.Location
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.EstimatedPrice != nil {
		updates["estimated_price"] = *patch.EstimatedPrice
	}
	if patch.MaxParticipants != nil {
		updates["max_participants"] = *patch.MaxParticipants
	}
	if patch.ImageURL != nil {
		updates["image_url"] = *patch.ImageURL
	}
	if patch.AdditionalFields != nil {
		fields, err := json.Marshal(patch.AdditionalFields)
		if err != nil {
			return fmt.Errorf("marshal additional fields: %w", err)
		}
		updates["additional_fields"] = datatypes.JSON(fields)
	}
	if patch.Status != nil {
		updates["status"] = string(*patch.Status)
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&PartyModel{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Exec(statusRuleSQL, id).Error
	})
}

// DeleteParty removes the party and its membership rows. Messages that
// reference the party are left in place.
func (s *GormStore) DeleteParty(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&ParticipantModel{}, "party_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&PartyModel{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// AddParticipant joins a user to a party. The count increment is guarded by
// a conditional update so two racing joins cannot both pass capacity.
func (s *GormStore) AddParticipant(partyID, userID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		member := ParticipantModel{PartyID: partyID, UserID: userID, CreatedAt: time.Now().UTC()}
		if err := tx.Create(&member).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyParticipant
			}
			return err
		}
		res := tx.Exec(`
			UPDATE party_models
			SET current_participants = current_participants + 1, updated_at = ?
			WHERE id = ? AND status = 'open' AND current_participants < max_participants`,
			time.Now().UTC(), partyID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&PartyModel{}).Where("id = ?", partyID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrNotFound
			}
			return ErrPartyNotJoinable
		}
		return tx.Exec(statusRuleSQL, partyID).Error
	})
}

// RemoveParticipant removes a user from a party and re-derives status.
func (s *GormStore) RemoveParticipant(partyID, userID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&ParticipantModel{}, "party_id = ? AND user_id = ?", partyID, userID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotParticipant
		}
		res = tx.Exec(`
			UPDATE party_models
			SET current_participants = current_participants - 1, updated_at = ?
			WHERE id = ?`,
			time.Now().UTC(), partyID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Exec(statusRuleSQL, partyID).Error
	})
}

// SearchParties filters parties; nearest-first when a geo filter is active,
// newest-first otherwise.
func (s *GormStore) SearchParties(f PartyFilter) ([]domain.Party, error) {
	query := s.db.Model(&PartyModel{}).Where("is_global = ?", f.IsGlobal)
	if f.Location != "" {
		query = query.Where("location ILIKE ?", "%"+f.Location+"%")
	}
	if f.MaxPrice != nil {
		query = query.Where("estimated_price <= ?", *f.MaxPrice)
	}
	if f.Status != "" {
		query = query.Where("status = ?", string(f.Status))
	}
	if !f.IsGlobal && f.Near != nil {
		maxKm := f.MaxDistanceKm
		if maxKm <= 0 {
			maxKm = 50
		}
		lat, lng := f.Near.Latitude, f.Near.Longitude
		query = query.
			Where("latitude IS NOT NULL AND longitude IS NOT NULL").
			Where(haversineSQL+" <= ?", lat, lng, lat, maxKm).
			Order(clause.Expr{SQL: haversineSQL + " ASC", Vars: []any{lat, lng, lat}})
	} else {
		query = query.Order("created_at DESC")
	}
	var models []PartyModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return s.populateParties(models)
}

// ListPartiesByMember returns parties the user owns or has joined, newest
// first.
func (s *GormStore) ListPartiesByMember(userID string) ([]domain.Party, error) {
	var models []PartyModel
	memberOf := s.db.Model(&ParticipantModel{}).Select("party_id").Where("user_id = ?", userID)
	if err := s.db.Where("id IN (?)", memberOf).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return s.populateParties(models)
}

// AppendMessage records a message and returns it with references populated.
func (s *GormStore) AppendMessage(m domain.Message) (domain.Message, error) {
	model := messageToModel(m)
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Message{}, err
	}
	msgs, err := s.populateMessages([]MessageModel{model})
	if err != nil {
		return domain.Message{}, err
	}
	return msgs[0], nil
}

// ListPartyMessages returns a party's messages in chronological order. For
// private listings both directions of the sender/partner pair are included.
func (s *GormStore) ListPartyMessages(partyID string, private bool, userID, partnerID string) ([]domain.Message, error) {
	query := s.db.Where("party_id = ? AND is_private = ?", partyID, private)
	if private {
		query = query.Where(
			"(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)",
			userID, partnerID, partnerID, userID,
		)
	}
	var models []MessageModel
	if err := query.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return s.populateMessages(models)
}

// ListDirectMessages returns every private message the user sent or
// received, newest first.
func (s *GormStore) ListDirectMessages(userID string) ([]domain.Message, error) {
	var models []MessageModel
	if err := s.db.
		Where("is_private = ? AND (sender_id = ? OR recipient_id = ?)", true, userID, userID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return s.populateMessages(models)
}

// AppendAdvisorExchange persists the user/assistant pair in one transaction
// so an exchange is never half-recorded.
func (s *GormStore) AppendAdvisorExchange(userMsg, assistantMsg domain.AdvisorMessage) error {
	// Keep the pair ordered even on coarse clocks.
	if !assistantMsg.CreatedAt.After(userMsg.CreatedAt) {
		assistantMsg.CreatedAt = userMsg.CreatedAt.Add(time.Millisecond)
	}
	userModel := advisorToModel(userMsg)
	assistantModel := advisorToModel(assistantMsg)
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&userModel).Error; err != nil {
			return err
		}
		return tx.Create(&assistantModel).Error
	})
}

// ListAdvisorMessages returns the most recent advisor messages for the
// scope, reversed to chronological order.
func (s *GormStore) ListAdvisorMessages(userID, partyID string, limit int) ([]domain.AdvisorMessage, error) {
	if limit <= 0 {
		return []domain.AdvisorMessage{}, nil
	}
	query := s.db.Where("user_id = ?", userID)
	if partyID != "" {
		query = query.Where("party_id = ?", partyID)
	}
	var models []AdvisorMessageModel
	if err := query.Order("created_at DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	msgs := make([]domain.AdvisorMessage, 0, len(models))
	for i := len(models) - 1; i >= 0; i-- {
		msgs = append(msgs, advisorFromModel(models[i]))
	}
	return msgs, nil
}

// CountAdvisorMessages counts advisor messages for the scope. The context
// deadline bounds the query.
func (s *GormStore) CountAdvisorMessages(ctx context.Context, userID, partyID string) (int, error) {
	query := s.db.WithContext(ctx).Model(&AdvisorMessageModel{}).Where("user_id = ?", userID)
	if partyID != "" {
		query = query.Where("party_id = ?", partyID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// DeleteAdvisorMessages removes all advisor history owned by the user.
func (s *GormStore) DeleteAdvisorMessages(userID string) error {
	return s.db.Delete(&AdvisorMessageModel{}, "user_id = ?", userID).Error
}

// SaveDestination stores or updates a destination document.
func (s *GormStore) SaveDestination(d domain.Destination) error {
	model, err := destinationToModel(d)
	if err != nil {
		return err
	}
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "short_description", "long_description", "banner_url",
			"weather", "currency", "languages", "attractions", "updated_at",
		}),
	}).Create(&model).Error
}

// GetDestination retrieves a destination with full details.
func (s *GormStore) GetDestination(id string) (domain.Destination, bool, error) {
	var model DestinationModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Destination{}, false, nil
		}
		return domain.Destination{}, false, err
	}
	dest, err := destinationFromModel(model)
	if err != nil {
		return domain.Destination{}, false, err
	}
	return dest, true, nil
}

// GetDestinationByName looks up a destination by exact name, case
// insensitively.
func (s *GormStore) GetDestinationByName(name string) (domain.Destination, bool, error) {
	var model DestinationModel
	if err := s.db.First(&model, "LOWER(name) = LOWER(?)", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Destination{}, false, nil
		}
		return domain.Destination{}, false, err
	}
	dest, err := destinationFromModel(model)
	if err != nil {
		return domain.Destination{}, false, err
	}
	return dest, true, nil
}

// SearchDestinations matches the query against names, short descriptions,
// and attraction names; empty query lists everything. Sorted by name.
func (s *GormStore) SearchDestinations(query string) ([]domain.Destination, error) {
	tx := s.db.Model(&DestinationModel{})
	if query != "" {
		pattern := "%" + query + "%"
		tx = tx.Where(
			"name ILIKE ? OR short_description ILIKE ? OR attractions::text ILIKE ?",
			pattern, pattern, pattern,
		)
	}
	var models []DestinationModel
	if err := tx.Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	dests := make([]domain.Destination, 0, len(models))
	for _, model := range models {
		dest, err := destinationFromModel(model)
		if err != nil {
			return nil, err
		}
		dests = append(dests, dest)
	}
	return dests, nil
}

// populateParties resolves owner and participant references for a batch of
// party rows in two queries.
func (s *GormStore) populateParties(models []PartyModel) ([]domain.Party, error) {
	if len(models) == 0 {
		return []domain.Party{}, nil
	}
	partyIDs := make([]string, 0, len(models))
	for _, model := range models {
		partyIDs = append(partyIDs, model.ID)
	}
	var members []ParticipantModel
	if err := s.db.Where("party_id IN ?", partyIDs).
		Order("created_at ASC").
		Find(&members).Error; err != nil {
		return nil, err
	}
	userIDs := make([]string, 0, len(members)+len(models))
	for _, model := range models {
		userIDs = append(userIDs, model.OwnerID)
	}
	membersByParty := make(map[string][]string)
	for _, member := range members {
		membersByParty[member.PartyID] = append(membersByParty[member.PartyID], member.UserID)
		userIDs = append(userIDs, member.UserID)
	}
	refs, err := s.userRefs(userIDs)
	if err != nil {
		return nil, err
	}
	parties := make([]domain.Party, 0, len(models))
	for _, model := range models {
		party, err := partyFromModel(model)
		if err != nil {
			return nil, err
		}
		party.Owner = refs[model.OwnerID]
		memberIDs := membersByParty[model.ID]
		party.Participants = make([]domain.UserRef, 0, len(memberIDs))
		for _, uid := range memberIDs {
			party.Participants = append(party.Participants, refs[uid])
		}
		parties = append(parties, party)
	}
	return parties, nil
}

func (s *GormStore) populateMessages(models []MessageModel) ([]domain.Message, error) {
	if len(models) == 0 {
		return []domain.Message{}, nil
	}
	userIDs := make([]string, 0, 2*len(models))
	for _, model := range models {
		userIDs = append(userIDs, model.SenderID)
		if model.RecipientID != nil {
			userIDs = append(userIDs, *model.RecipientID)
		}
	}
	refs, err := s.userRefs(userIDs)
	if err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, 0, len(models))
	for _, model := range models {
		msg := messageFromModel(model)
		msg.Sender = refs[model.SenderID]
		if model.RecipientID != nil {
			ref := refs[*model.RecipientID]
			msg.Recipient = &ref
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// userRefs loads identity projections for the given user IDs. Unknown IDs
// fall back to a bare reference so a deleted user does not break population.
func (s *GormStore) userRefs(ids []string) (map[string]domain.UserRef, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	var models []UserModel
	if err := s.db.Select("id", "username", "profile_photo").
		Where("id IN ?", unique).
		Find(&models).Error; err != nil {
		return nil, err
	}
	refs := make(map[string]domain.UserRef, len(unique))
	for _, id := range unique {
		refs[id] = domain.UserRef{ID: id}
	}
	for _, model := range models {
		refs[model.ID] = domain.UserRef{
			ID:           model.ID,
			Username:     model.Username,
			ProfilePhoto: model.ProfilePhoto,
		}
	}
	return refs, nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		ProfilePhoto: u.ProfilePhoto,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		ProfilePhoto: m.ProfilePhoto,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func partyToModel(p domain.Party) (PartyModel, error) {
	fields, err := json.Marshal(p.AdditionalFields)
	if err != nil {
		return PartyModel{}, fmt.Errorf("marshal additional fields: %w", err)
	}
	model := PartyModel{
		ID:                  p.ID,
		OwnerID:             p.Owner.ID,
		Location:            p.Location,
		Description:         p.Description,
		EstimatedPrice:      p.EstimatedPrice,
		MaxParticipants:     p.MaxParticipants,
		CurrentParticipants: p.CurrentParticipants,
		Status:              string(p.Status),
		IsGlobal:            p.IsGlobal,
		ImageURL:            p.ImageURL,
		AdditionalFields:    datatypes.JSON(fields),
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
	if p.Coordinates != nil {
		lat, lng := p.Coordinates.Latitude, p.Coordinates.Longitude
		model.Latitude = &lat
		model.Longitude = &lng
	}
	return model, nil
}

func partyFromModel(m PartyModel) (domain.Party, error) {
	var fields map[string]any
	if len(m.AdditionalFields) > 0 {
		if err := json.Unmarshal(m.AdditionalFields, &fields); err != nil {
			return domain.Party{}, fmt.Errorf("unmarshal additional fields: %w", err)
		}
	}
	if fields == nil {
		fields = map[string]any{}
	}
	party := domain.Party{
		ID:                  m.ID,
		CurrentParticipants: m.CurrentParticipants,
		MaxParticipants:     m.MaxParticipants,
		Status:              domain.PartyStatus(m.Status),
		IsGlobal:            m.IsGlobal,
		Location:            m.Location,
		Description:         m.Description,
		EstimatedPrice:      m.EstimatedPrice,
		ImageURL:            m.ImageURL,
		AdditionalFields:    fields,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
	if m.Latitude != nil && m.Longitude != nil {
		party.Coordinates = &domain.GeoPoint{Latitude: *m.Latitude, Longitude: *m.Longitude}
	}
	return party, nil
}

func messageToModel(m domain.Message) MessageModel {
	model := MessageModel{
		ID:        m.ID,
		Content:   m.Content,
		SenderID:  m.Sender.ID,
		IsPrivate: m.IsPrivate,
		CreatedAt: m.CreatedAt,
	}
	if m.PartyID != "" {
		partyID := m.PartyID
		model.PartyID = &partyID
	}
	if m.Recipient != nil {
		recipientID := m.Recipient.ID
		model.RecipientID = &recipientID
	}
	return model
}

func messageFromModel(m MessageModel) domain.Message {
	msg := domain.Message{
		ID:        m.ID,
		Content:   m.Content,
		IsPrivate: m.IsPrivate,
		CreatedAt: m.CreatedAt,
	}
	if m.PartyID != nil {
		msg.PartyID = *m.PartyID
	}
	return msg
}

func advisorToModel(m domain.AdvisorMessage) AdvisorMessageModel {
	model := AdvisorMessageModel{
		ID:        m.ID,
		UserID:    m.UserID,
		Role:      m.Role,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
	if m.PartyID != "" {
		partyID := m.PartyID
		model.PartyID = &partyID
	}
	return model
}

func advisorFromModel(m AdvisorMessageModel) domain.AdvisorMessage {
	msg := domain.AdvisorMessage{
		ID:        m.ID,
		UserID:    m.UserID,
		Role:      m.Role,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
	if m.PartyID != nil {
		msg.PartyID = *m.PartyID
	}
	return msg
}

func destinationToModel(d domain.Destination) (DestinationModel, error) {
	weather, err := json.Marshal(d.Weather)
	if err != nil {
		return DestinationModel{}, err
	}
	currency, err := json.Marshal(d.Currency)
	if err != nil {
		return DestinationModel{}, err
	}
	languages, err := json.Marshal(d.Languages)
	if err != nil {
		return DestinationModel{}, err
	}
	attractions, err := json.Marshal(d.Attractions)
	if err != nil {
		return DestinationModel{}, err
	}
	return DestinationModel{
		ID:               d.ID,
		Name:             d.Name,
		ShortDescription: d.ShortDescription,
		LongDescription:  d.LongDescription,
		BannerURL:        d.BannerURL,
		Weather:          weather,
		Currency:         currency,
		Languages:        languages,
		Attractions:      attractions,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}, nil
}

func destinationFromModel(m DestinationModel) (domain.Destination, error) {
	dest := domain.Destination{
		ID:               m.ID,
		Name:             m.Name,
		ShortDescription: m.ShortDescription,
		LongDescription:  m.LongDescription,
		BannerURL:        m.BannerURL,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	if len(m.Weather) > 0 {
		if err := json.Unmarshal(m.Weather, &dest.Weather); err != nil {
			return domain.Destination{}, err
		}
	}
	if len(m.Currency) > 0 {
		if err := json.Unmarshal(m.Currency, &dest.Currency); err != nil {
			return domain.Destination{}, err
		}
	}
	if len(m.Languages) > 0 {
		if err := json.Unmarshal(m.Languages, &dest.Languages); err != nil {
			return domain.Destination{}, err
		}
	}
	if len(m.Attractions) > 0 {
		if err := json.Unmarshal(m.Attractions, &dest.Attractions); err != nil {
			return domain.Destination{}, err
		}
	}
	return dest, nil
}
