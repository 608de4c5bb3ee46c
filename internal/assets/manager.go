// Package assets deletes stored experience images across the storage backends the service has used.
package assets

import (
	"context"
	"log/slog"

	"explorer/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// Outcome is the result of a single deletion attempt.
type Outcome string

const (
	OutcomeDeleted  Outcome = "deleted"
	OutcomeNotFound Outcome = "not_found"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// Backend deletes assets for the references it owns.
type Backend interface {
	Name() string
	// Owns reports whether ref points at an asset held by this backend.
	Owns(ref string) bool
	Delete(ctx context.Context, ref string) (Outcome, error)
}

// Manager routes a reference to the first backend that owns it.
type Manager struct {
	backends []Backend
	logger   *slog.Logger
}

// NewManager builds a Manager. Backends are consulted in the given order; nil entries are ignored.
func NewManager(logger *slog.Logger, backends ...Backend) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{logger: logger}
	for _, b := range backends {
		if b != nil {
			m.backends = append(m.backends, b)
		}
	}
	return m
}

// Backends returns the names of the configured backends in resolution order.
func (m *Manager) Backends() []string {
	names := make([]string, 0, len(m.backends))
	for _, b := range m.backends {
		names = append(names, b.Name())
	}
	return names
}

// Delete removes the asset behind ref. It never fails: errors are logged and reported as OutcomeFailed.
func (m *Manager) Delete(ctx context.Context, ref string) Outcome {
	span, ctx := observability.NewSpan(ctx, "assets.Delete", attribute.String("asset.ref", ref))
	defer span.End()

	backend := m.resolve(ref)
	if backend == nil {
		m.logger.DebugContext(ctx, "no storage backend owns image reference", slog.String("ref", ref))
		observability.AssetDeletions.WithLabelValues("none", string(OutcomeSkipped)).Inc()
		span.AddAttributes(attribute.String("asset.outcome", string(OutcomeSkipped)))
		return OutcomeSkipped
	}

	outcome, err := backend.Delete(ctx, ref)
	if err != nil {
		outcome = OutcomeFailed
		span.SetError(err)
		m.logger.ErrorContext(ctx, "failed to delete image asset",
			slog.String("backend", backend.Name()),
			slog.String("ref", ref),
			slog.String("error", err.Error()),
		)
	}

	switch outcome {
	case OutcomeDeleted:
		m.logger.InfoContext(ctx, "deleted image asset", slog.String("backend", backend.Name()), slog.String("ref", ref))
	case OutcomeNotFound:
		m.logger.WarnContext(ctx, "image asset not found in storage", slog.String("backend", backend.Name()), slog.String("ref", ref))
	}

	observability.AssetDeletions.WithLabelValues(backend.Name(), string(outcome)).Inc()
	span.AddAttributes(
		attribute.String("asset.backend", backend.Name()),
		attribute.String("asset.outcome", string(outcome)),
	)
	return outcome
}

func (m *Manager) resolve(ref string) Backend {
	for _, b := range m.backends {
		if b.Owns(ref) {
			return b
		}
	}
	return nil
}
