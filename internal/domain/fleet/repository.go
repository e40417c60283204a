package fleet

import (
	"context"
)

// BackendClient is the authenticated JSON client the service talks through.
type BackendClient interface {
	GetJSON(ctx context.Context, path string, out any) error
	PostJSON(ctx context.Context, path string, in, out any) error
	PutJSON(ctx context.Context, path string, in, out any) error
	Delete(ctx context.Context, path string) error
}

// Validator checks form structs before they are sent.
type Validator interface {
	Validate(i interface{}) error
}

const (
	branchesPath = "/filial"
	yardsPath    = "/patio"
	vehiclesPath = "/moto"
)

// createBranchRequest is the batch envelope the branch endpoint expects.
type createBranchRequest struct {
	Branches []branchPayload `json:"filialRequests"`
}

type branchPayload struct {
	BranchForm
	OpenedOn string `json:"dataAbertura"`
}

// vehiclePayload always sends idOperador as null; operators are assigned
// elsewhere.
type vehiclePayload struct {
	VehicleForm
	OperatorID *ID `json:"idOperador"`
}
