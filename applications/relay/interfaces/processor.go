package interfaces

import (
	"context"

	"github.com/donmikel/extractrelay/applications/relay/domain"
)

// Processor hands a file to the downstream processing service.
type Processor interface {
	Process(ctx context.Context, file domain.File) (domain.Result, error)
	GetURL() string
}
