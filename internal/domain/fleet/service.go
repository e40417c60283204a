package fleet

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"

	"github.com/codecraftes/mottu-yard/internal/domain/errors"
)

const (
	cacheBranches = "branches"
	cacheYards    = "yards"
	cacheVehicles = "vehicles"
)

// Service provides fleet CRUD with a short-lived cache of list queries.
type Service struct {
	client    BackendClient
	validator Validator
	cache     *ttlcache.Cache[string, any]
	log       *zap.Logger
	now       func() time.Time
}

// NewService creates a fleet service. A zero ttl disables caching.
func NewService(client BackendClient, validator Validator, ttl time.Duration, log *zap.Logger) *Service {
	s := &Service{
		client:    client,
		validator: validator,
		log:       log,
		now:       time.Now,
	}
	if ttl > 0 {
		s.cache = ttlcache.New(
			ttlcache.WithTTL[string, any](ttl),
			ttlcache.WithDisableTouchOnHit[string, any](),
		)
	}
	return s
}

// cachedList serves key from the cache or fetches path and caches the result.
func cachedList[T any](ctx context.Context, s *Service, key, path string) ([]T, error) {
	if s.cache != nil {
		if item := s.cache.Get(key); item != nil {
			if v, ok := item.Value().([]T); ok {
				return v, nil
			}
		}
	}

	var out []T
	if err := s.client.GetJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	if s.cache != nil {
		s.cache.Set(key, out, ttlcache.DefaultTTL)
	}
	return out, nil
}

// invalidate drops every cached list after a successful mutation.
func (s *Service) invalidate() {
	if s.cache != nil {
		s.cache.DeleteAll()
	}
}

func (s *Service) validate(form any) error {
	if s.validator == nil {
		return nil
	}
	return s.validator.Validate(form)
}

func itemPath(base string, id ID) (string, error) {
	if strings.TrimSpace(string(id)) == "" {
		return "", errors.NewValidationError("id is required")
	}
	return base + "/" + url.PathEscape(string(id)), nil
}

// ListBranches returns every branch.
func (s *Service) ListBranches(ctx context.Context) ([]Branch, error) {
	return cachedList[Branch](ctx, s, cacheBranches, branchesPath+"/all")
}

// CreateBranch creates a branch opened today.
func (s *Service) CreateBranch(ctx context.Context, form BranchForm) error {
	form = trimBranch(form)
	if err := s.validate(form); err != nil {
		return err
	}

	req := createBranchRequest{Branches: []branchPayload{{
		BranchForm: form,
		OpenedOn:   s.now().Format(time.DateOnly),
	}}}
	if err := s.client.PostJSON(ctx, branchesPath, req, nil); err != nil {
		return fmt.Errorf("failed to create branch: %w", err)
	}
	s.invalidate()
	s.log.Info("branch created", zap.String("name", form.Name))
	return nil
}

// UpdateBranch replaces the fields of branch id. openedOn is sent back unchanged.
func (s *Service) UpdateBranch(ctx context.Context, id ID, form BranchForm, openedOn string) (Branch, error) {
	path, err := itemPath(branchesPath, id)
	if err != nil {
		return Branch{}, err
	}
	form = trimBranch(form)
	if err := s.validate(form); err != nil {
		return Branch{}, err
	}

	var out Branch
	if err := s.client.PutJSON(ctx, path, branchPayload{BranchForm: form, OpenedOn: openedOn}, &out); err != nil {
		return Branch{}, fmt.Errorf("failed to update branch %s: %w", id, err)
	}
	s.invalidate()
	return out, nil
}

// DeleteBranch removes branch id.
func (s *Service) DeleteBranch(ctx context.Context, id ID) error {
	return s.deleteItem(ctx, branchesPath, "branch", id)
}

// ListYards returns every yard.
func (s *Service) ListYards(ctx context.Context) ([]Yard, error) {
	return cachedList[Yard](ctx, s, cacheYards, yardsPath+"/all")
}

// CreateYard creates a yard under form.BranchID.
func (s *Service) CreateYard(ctx context.Context, form YardForm) (Yard, error) {
	form = trimYard(form)
	if err := s.validate(form); err != nil {
		return Yard{}, err
	}

	var out Yard
	if err := s.client.PostJSON(ctx, yardsPath, form, &out); err != nil {
		return Yard{}, fmt.Errorf("failed to create yard: %w", err)
	}
	s.invalidate()
	s.log.Info("yard created", zap.String("name", form.Name))
	return out, nil
}

// UpdateYard replaces the fields of yard id.
func (s *Service) UpdateYard(ctx context.Context, id ID, form YardForm) (Yard, error) {
	path, err := itemPath(yardsPath, id)
	if err != nil {
		return Yard{}, err
	}
	form = trimYard(form)
	if err := s.validate(form); err != nil {
		return Yard{}, err
	}

	var out Yard
	if err := s.client.PutJSON(ctx, path, form, &out); err != nil {
		return Yard{}, fmt.Errorf("failed to update yard %s: %w", id, err)
	}
	s.invalidate()
	return out, nil
}

// DeleteYard removes yard id.
func (s *Service) DeleteYard(ctx context.Context, id ID) error {
	return s.deleteItem(ctx, yardsPath, "yard", id)
}

// ListVehicles returns the vehicles of every yard.
func (s *Service) ListVehicles(ctx context.Context) ([]Vehicle, error) {
	return cachedList[Vehicle](ctx, s, cacheVehicles, vehiclesPath+"/all")
}

// ListVehiclesByYard returns the vehicles parked in yard id.
func (s *Service) ListVehiclesByYard(ctx context.Context, yardID ID) ([]Vehicle, error) {
	path, err := itemPath(yardsPath, yardID)
	if err != nil {
		return nil, err
	}
	return cachedList[Vehicle](ctx, s, cacheVehicles+":"+string(yardID), path+"/motos")
}

// CreateVehicle registers a vehicle with no operator.
func (s *Service) CreateVehicle(ctx context.Context, form VehicleForm) (Vehicle, error) {
	form = trimVehicle(form)
	if err := s.validate(form); err != nil {
		return Vehicle{}, err
	}

	var out Vehicle
	if err := s.client.PostJSON(ctx, vehiclesPath, vehiclePayload{VehicleForm: form}, &out); err != nil {
		return Vehicle{}, fmt.Errorf("failed to create vehicle: %w", err)
	}
	s.invalidate()
	s.log.Info("vehicle created", zap.String("plate", form.Plate))
	return out, nil
}

// UpdateVehicle replaces every field of vehicle id. The operator is cleared.
func (s *Service) UpdateVehicle(ctx context.Context, id ID, form VehicleForm) (Vehicle, error) {
	path, err := itemPath(vehiclesPath, id)
	if err != nil {
		return Vehicle{}, err
	}
	form = trimVehicle(form)
	if err := s.validate(form); err != nil {
		return Vehicle{}, err
	}

	var out Vehicle
	if err := s.client.PutJSON(ctx, path, vehiclePayload{VehicleForm: form}, &out); err != nil {
		return Vehicle{}, fmt.Errorf("failed to update vehicle %s: %w", id, err)
	}
	s.invalidate()
	return out, nil
}

// ChangeVehicleStatus updates only the status of v, resending its other fields.
func (s *Service) ChangeVehicleStatus(ctx context.Context, v Vehicle, status VehicleStatus) (Vehicle, error) {
	form := v.Form()
	form.Status = status
	return s.UpdateVehicle(ctx, v.ID, form)
}

// DeleteVehicle removes vehicle id.
func (s *Service) DeleteVehicle(ctx context.Context, id ID) error {
	return s.deleteItem(ctx, vehiclesPath, "vehicle", id)
}

func (s *Service) deleteItem(ctx context.Context, base, kind string, id ID) error {
	path, err := itemPath(base, id)
	if err != nil {
		return err
	}
	if err := s.client.Delete(ctx, path); err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", kind, id, err)
	}
	s.invalidate()
	s.log.Info(kind+" deleted", zap.String("id", string(id)))
	return nil
}

func trimBranch(f BranchForm) BranchForm {
	f.Name = strings.TrimSpace(f.Name)
	f.CNPJ = strings.TrimSpace(f.CNPJ)
	f.CountryCode = strings.TrimSpace(f.CountryCode)
	return f
}

func trimYard(f YardForm) YardForm {
	f.Name = strings.TrimSpace(f.Name)
	f.Description = strings.TrimSpace(f.Description)
	f.BranchID = ID(strings.TrimSpace(string(f.BranchID)))
	return f
}

func trimVehicle(f VehicleForm) VehicleForm {
	f.Plate = strings.TrimSpace(f.Plate)
	f.Model = strings.TrimSpace(f.Model)
	f.Chassis = strings.TrimSpace(f.Chassis)
	f.YardID = ID(strings.TrimSpace(string(f.YardID)))
	return f
}
