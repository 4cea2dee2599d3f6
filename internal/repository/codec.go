package repository

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/vytor/ceplayer/internal/logger"
	"github.com/vytor/ceplayer/internal/models"
)

// EncodeLedger serializes a ledger in the persisted layout shared by every backend.
func EncodeLedger(l *models.Ledger) ([]byte, error) {
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("encode ledger %s: %w", l.Namespace, err)
	}
	return data, nil
}

// DecodeLedger parses a stored ledger. Unparseable data yields an empty ledger and a
// warning rather than an error, so a damaged record never blocks the player.
func DecodeLedger(ctx context.Context, namespace string, data []byte) *models.Ledger {
	l := models.NewLedger(namespace, 0)
	if len(data) == 0 {
		return l
	}
	if err := json.Unmarshal(data, l); err != nil {
		logger.FromContext(ctx).WithPrefix("ledger_codec").
			Warn("stored ledger for %s is unreadable, starting empty: %v", namespace, err)
		l = models.NewLedger(namespace, 0)
	}
	l.Namespace = namespace
	l.Normalize(0)
	return l
}

// CloneLedger returns a deep copy by round-tripping through the persisted layout.
func CloneLedger(ctx context.Context, l *models.Ledger) (*models.Ledger, error) {
	data, err := EncodeLedger(l)
	if err != nil {
		return nil, err
	}
	return DecodeLedger(ctx, l.Namespace, data), nil
}
