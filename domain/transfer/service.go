package transfer

import (
	"context"
	"log/slog"

	"github.com/ahlt-platform/ahlt/domain/graph"
	"github.com/ahlt-platform/ahlt/pkg/logger"
)

// Service ties the exporter, importer and JSON-LD codec together.
type Service struct {
	exporter *Exporter
	importer *Importer
	graph    *graph.Repository
	log      *slog.Logger
}

// NewService creates a transfer service.
func NewService(exporter *Exporter, importer *Importer, g *graph.Repository, log *slog.Logger) *Service {
	return &Service{
		exporter: exporter,
		importer: importer,
		graph:    g,
		log:      log.With(logger.Scope("transfer.svc")),
	}
}

// Export builds the native payload, optionally filtered by entity types.
func (s *Service) Export(ctx context.Context, entityTypes []string) (*ExportPayload, error) {
	return s.exporter.Export(ctx, entityTypes)
}

// ExportSQL renders the export as SQL INSERT statements.
func (s *Service) ExportSQL(ctx context.Context, entityTypes []string) (string, error) {
	payload, err := s.exporter.Export(ctx, entityTypes)
	if err != nil {
		return "", err
	}
	return ExportSQL(payload), nil
}

// ExportJSONLD renders the export as a JSON-LD document with a @context
// derived from the property keys and relation types in the store.
func (s *Service) ExportJSONLD(ctx context.Context, entityTypes []string) (*JSONLDDocument, error) {
	payload, err := s.exporter.Export(ctx, entityTypes)
	if err != nil {
		return nil, err
	}
	keys, err := s.graph.ListPropertyKeys(ctx)
	if err != nil {
		return nil, err
	}
	relTypes, err := s.graph.FindByType(ctx, graph.RelationTypeName)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(relTypes))
	for i, rt := range relTypes {
		names[i] = rt.Name
	}
	return ToJSONLD(payload, BuildContext(keys, names)), nil
}

// Import merges a native payload into the graph.
func (s *Service) Import(ctx context.Context, payload *ImportPayload) (*ImportResult, error) {
	return s.importer.Import(ctx, payload)
}

// ImportJSONLD parses a JSON-LD document and merges it into the graph.
func (s *Service) ImportJSONLD(ctx context.Context, doc map[string]any) (*ImportResult, error) {
	payload, err := ParseJSONLD(doc)
	if err != nil {
		return nil, err
	}
	return s.importer.Import(ctx, payload)
}
