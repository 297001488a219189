package logging

import (
	"go.uber.org/zap"
)

// New builds the process logger. Development environments get human-readable
// console output; anything else gets structured JSON suitable for ingestion.
func New(env string) (*zap.Logger, error) {
	if env == "local" || env == "test" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// ForBuild returns a logger scoped to one revision build, carrying the
// dataset/revision/build identifiers on every subsequent log line.
func ForBuild(base *zap.Logger, datasetID, revisionID, buildID string) *zap.Logger {
	return base.With(
		zap.String("dataset_id", datasetID),
		zap.String("revision_id", revisionID),
		zap.String("build_id", buildID),
	)
}
