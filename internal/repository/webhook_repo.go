package repository

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/kelvinguchu/galacticelectricals/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type WebhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// HashPayload derives the ledger key for one delivery: SHA-256 over the
// channel and the raw payload bytes. Different payload bytes (a retried
// delivery with a changed timestamp field) intentionally produce a different
// hash; the at-most-one-order guard on the payment covers that case.
func HashPayload(channel string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(channel))
	h.Write([]byte(":"))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// MarkSeen records a webhook delivery and reports whether an identical one
// was already processed. The insert races on the unique event_hash index, so
// two simultaneous identical deliveries resolve at the storage layer: one
// insert wins, the other maps gorm.ErrDuplicatedKey to isDuplicate=true.
func (r *WebhookEventRepository) MarkSeen(channel string, payload []byte) (isDuplicate bool, eventHash string, err error) {
	eventHash = HashPayload(channel, payload)

	event := &models.WebhookEvent{
		Channel:   channel,
		EventHash: eventHash,
		Processed: true,
		Payload:   datatypes.JSON(payload),
	}
	if err := r.db.Create(event).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return true, eventHash, nil
		}
		return false, eventHash, err
	}
	return false, eventHash, nil
}
