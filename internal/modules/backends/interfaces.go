package backends

import (
	"context"

	"github.com/qulab/qulab/internal/clients/qx"
)

// StatusClient is the slice of the QX API the backends module consumes.
// Satisfied by *qx.Client; tests substitute fakes.
type StatusClient interface {
	Backends(ctx context.Context) ([]qx.Backend, error)
	OperationalBackends(ctx context.Context) ([]qx.Backend, error)
	BackendStatus(ctx context.Context, name string) (*qx.QueueStatus, error)
	BackendCalibration(ctx context.Context, name string) (*qx.Calibration, error)
}
