// Package assets keeps the kiosk's uploaded images: one icon per machine and
// the branding slots. Images are stored as data URIs in the profile store.
package assets

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"laundry-kiosk/internal/store"
)

var (
	ErrUnknownSlot = errors.New("unknown branding slot")
	ErrNotImage    = errors.New("upload is not an image")
	ErrTooLarge    = errors.New("upload is too large")
)

// Slot names a branding image.
type Slot string

const (
	SlotLogo   Slot = "logo"
	SlotWasher Slot = "washer"
	SlotDryer  Slot = "dryer"
	SlotGuide  Slot = "guide"
)

type slotInfo struct {
	key      string
	fallback string
}

var slots = map[Slot]slotInfo{
	SlotLogo:   {store.KeyAppLogo, DefaultLogo},
	SlotWasher: {store.KeyWasherImage, DefaultWasher},
	SlotDryer:  {store.KeyDryerImage, DefaultDryer},
	SlotGuide:  {store.KeyGuideImage, DefaultGuide},
}

// ParseSlot validates a slot name.
func ParseSlot(name string) (Slot, error) {
	s := Slot(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := slots[s]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSlot, name)
	}
	return s, nil
}

// Service reads and writes kiosk images.
type Service struct {
	store    store.Store
	maxBytes int64
	log      zerolog.Logger

	mu sync.Mutex
}

// NewService creates an image service; uploads above maxBytes are refused.
func NewService(s store.Store, maxBytes int64, log zerolog.Logger) *Service {
	return &Service{store: s, maxBytes: maxBytes, log: log.With().Str("component", "assets").Logger()}
}

// Branding returns every slot, falling back to the built-in image for slots
// never uploaded.
func (s *Service) Branding(ctx context.Context) (map[Slot]string, error) {
	out := make(map[Slot]string, len(slots))
	for slot, info := range slots {
		v, ok, err := s.store.Get(ctx, info.key)
		if err != nil {
			return nil, err
		}
		if !ok || v == "" {
			v = info.fallback
		}
		out[slot] = v
	}
	return out, nil
}

// SetBranding stores an uploaded image in slot and returns its data URI.
func (s *Service) SetBranding(ctx context.Context, slot Slot, data []byte) (string, error) {
	info, ok := slots[slot]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
	}
	uri, err := DataURI(data, s.maxBytes)
	if err != nil {
		return "", err
	}
	if err := s.store.Set(ctx, info.key, uri); err != nil {
		return "", err
	}
	s.log.Info().Str("slot", string(slot)).Int("bytes", len(data)).Msg("branding image updated")
	return uri, nil
}

// Icons returns the custom icon of every machine that has one.
func (s *Service) Icons(ctx context.Context) (map[string]string, error) {
	icons := map[string]string{}
	if _, err := store.GetJSON(ctx, s.store, store.KeyMachineIcons, &icons); err != nil {
		// A corrupt map is treated as empty; the next upload rewrites it.
		s.log.Warn().Err(err).Msg("ignoring unreadable icon map")
		return map[string]string{}, nil
	}
	return icons, nil
}

// SetIcon stores the icon of machineID and returns its data URI.
func (s *Service) SetIcon(ctx context.Context, machineID string, data []byte) (string, error) {
	uri, err := DataURI(data, s.maxBytes)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	icons, err := s.Icons(ctx)
	if err != nil {
		return "", err
	}
	icons[machineID] = uri
	if err := store.SetJSON(ctx, s.store, store.KeyMachineIcons, icons); err != nil {
		return "", err
	}
	s.log.Info().Str("machine", machineID).Int("bytes", len(data)).Msg("machine icon updated")
	return uri, nil
}

// DataURI turns an uploaded image into a data URI. A body that already is an
// image data URI is kept verbatim.
func DataURI(data []byte, maxBytes int64) (string, error) {
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(data), maxBytes)
	}
	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("data:image/")) {
		return string(trimmed), nil
	}
	if len(trimmed) == 0 {
		return "", ErrNotImage
	}

	mime := mimetype.Detect(data)
	base, _, _ := strings.Cut(mime.String(), ";")
	if !strings.HasPrefix(base, "image/") {
		return "", fmt.Errorf("%w: detected %s", ErrNotImage, base)
	}
	return "data:" + base + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
