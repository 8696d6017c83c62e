package relay

import (
	"context"

	"github.com/donmikel/extractrelay/applications/relay/domain"
)

type ExtractService interface {
	Extract(ctx context.Context, file domain.File) (domain.Result, error)
}
