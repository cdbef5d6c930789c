package interfaces

import (
	"context"

	"ess-loan-gateway/internal/pkg/gcs"
)

// ArchiverInterface stores a copy of every signed document exchanged with the portal.
type ArchiverInterface interface {
	Archive(ctx context.Context, doc gcs.ArchivedDocument) error
}
