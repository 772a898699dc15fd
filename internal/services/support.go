package services

import (
	"bytes"
	"context"
	"io"
	"log"
	"math"
	"path"
	"strings"

	"github.com/bazaar-market/apiserver/types"
	"github.com/google/uuid"
)

// EventPublisher sends row change events to the live feed.
type EventPublisher interface {
	Publish(ctx context.Context, event types.RowEvent) error
}

// ImageStore uploads images and returns their public URLs.
type ImageStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string, overwrite bool) (string, error)
}

// Upload is an image received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// publish emits a change event. The row is already committed, so a broker
// failure is logged and not returned: clients reconcile on reconnect.
func publish(ctx context.Context, events EventPublisher, table, kind string, record any) {
	if events == nil {
		return
	}
	event, err := types.NewRowEvent(table, kind, record)
	if err != nil {
		log.Printf("events: encode %s %s: %v", kind, table, err)
		return
	}
	if err := events.Publish(ctx, event); err != nil {
		log.Printf("events: publish %s %s: %v", kind, table, err)
	}
}

// maxPrice is the largest amount a NUMERIC(12, 2) column holds.
const maxPrice = 9999999999.99

// normalizePrice rounds price to cents, the precision prices are stored
// with, and rejects values that are not finite or not positive after
// rounding.
func normalizePrice(price float64) (float64, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, ErrInvalidPrice
	}
	rounded := math.Round(price*100) / 100
	if rounded <= 0 || rounded > maxPrice {
		return 0, ErrInvalidPrice
	}
	return rounded, nil
}

// activeProfile loads the actor's profile and rejects banned accounts.
func activeProfile(ctx context.Context, profiles ProfileRepository, id uuid.UUID) (types.Profile, error) {
	profile, err := profiles.Get(ctx, id)
	if err != nil {
		return types.Profile{}, err
	}
	if profile.Banned {
		return types.Profile{}, ErrBanned
	}
	return profile, nil
}

// adminProfile loads the actor's profile and requires the admin flag.
func adminProfile(ctx context.Context, profiles ProfileRepository, id uuid.UUID) (types.Profile, error) {
	profile, err := activeProfile(ctx, profiles, id)
	if err != nil {
		return types.Profile{}, err
	}
	if !profile.IsAdmin {
		return types.Profile{}, ErrForbidden
	}
	return profile, nil
}

// objectKey builds a collision-free key under prefix, keeping the upload's
// extension.
func objectKey(prefix string, upload Upload) string {
	ext := strings.ToLower(path.Ext(path.Base(upload.Filename)))
	return path.Join(prefix, uuid.NewString()+ext)
}

func uploadImage(ctx context.Context, images ImageStore, prefix string, upload Upload) (string, error) {
	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return images.Upload(ctx, objectKey(prefix, upload), bytes.NewReader(upload.Data), int64(len(upload.Data)), contentType, false)
}
