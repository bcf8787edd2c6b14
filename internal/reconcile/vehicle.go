package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fleet-sync/internal/models"
)

// PlanVehicleSync returns the local vehicles whose VehicleNo is unknown to
// the cloud. Cloud-only vehicles are never touched.
func PlanVehicleSync(local, cloud []*models.Vehicle) []*models.Vehicle {
	known := make(map[string]struct{}, len(cloud))
	for _, v := range cloud {
		known[v.VehicleNo] = struct{}{}
	}

	var missing []*models.Vehicle
	for _, v := range local {
		if v.VehicleNo == "" {
			continue
		}
		if _, ok := known[v.VehicleNo]; ok {
			continue
		}
		missing = append(missing, v)
		// duplicates on the local side are inserted once
		known[v.VehicleNo] = struct{}{}
	}
	return missing
}

type VehiclePass struct {
	local      VehicleStore
	cloud      VehicleStore
	ownedField string
	ownedValue string
	dryRun     bool
	logger     *zap.Logger
}

func NewVehiclePass(local, cloud VehicleStore, ownedField, ownedValue string, dryRun bool, logger *zap.Logger) *VehiclePass {
	return &VehiclePass{
		local:      local,
		cloud:      cloud,
		ownedField: ownedField,
		ownedValue: ownedValue,
		dryRun:     dryRun,
		logger:     logger.With(zap.String("pass", string(PassVehicles))),
	}
}

func (p *VehiclePass) Run(ctx context.Context) (*VehicleReport, error) {
	start := time.Now()
	p.logger.Info("Starting vehicle reconciliation",
		zap.String("owned_field", p.ownedField),
		zap.String("owned_value", p.ownedValue))

	local, err := p.local.FindOwned(ctx, p.ownedField, p.ownedValue)
	if err != nil {
		return nil, fmt.Errorf("failed to load local vehicles: %w", err)
	}

	cloud, err := p.cloud.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load cloud vehicles: %w", err)
	}

	missing := PlanVehicleSync(local, cloud)
	report := &VehicleReport{
		LocalVehicles:   len(local),
		CloudVehicles:   len(cloud),
		InsertedToCloud: len(missing),
	}

	if len(missing) > 0 && !p.dryRun {
		if err := p.cloud.InsertMany(ctx, missing); err != nil {
			return report, fmt.Errorf("failed to insert vehicles into cloud: %w", err)
		}
	}

	p.logger.Info("Vehicle reconciliation completed",
		zap.Int("local_vehicles", report.LocalVehicles),
		zap.Int("cloud_vehicles", report.CloudVehicles),
		zap.Int("inserted_to_cloud", report.InsertedToCloud),
		zap.Bool("dry_run", p.dryRun),
		zap.Duration("duration", time.Since(start)))

	return report, nil
}
