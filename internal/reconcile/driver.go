package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fleet-sync/internal/models"
	"fleet-sync/internal/repository"
)

// DriverPlan is the set of writes the driver pass will issue.
type DriverPlan struct {
	NewToCloud        []*models.Driver
	UpdateLocalMobile []repository.MobileUpdate
	UpdateCloudMobile []repository.MobileUpdate
}

// PlanDriverSync joins local and cloud drivers on _id. Drivers missing from
// the cloud are copied there as is. For drivers on both sides, phone numbers
// flow only towards a side that has none; when both sides have numbers
// nothing changes.
func PlanDriverSync(local, cloud []*models.Driver) DriverPlan {
	cloudByID := make(map[string]*models.Driver, len(cloud))
	for _, d := range cloud {
		cloudByID[documentKey(d.ID)] = d
	}

	var plan DriverPlan
	for _, l := range local {
		if l.ID == nil {
			continue
		}

		c, ok := cloudByID[documentKey(l.ID)]
		if !ok {
			plan.NewToCloud = append(plan.NewToCloud, l)
			continue
		}

		switch {
		case c.HasMobileNumbers() && !l.HasMobileNumbers():
			plan.UpdateLocalMobile = append(plan.UpdateLocalMobile, repository.MobileUpdate{
				DriverID: l.ID,
				MobileNo: c.MobileNo,
			})
		case l.HasMobileNumbers() && !c.HasMobileNumbers():
			plan.UpdateCloudMobile = append(plan.UpdateCloudMobile, repository.MobileUpdate{
				DriverID: c.ID,
				MobileNo: l.MobileNo,
			})
		}
	}

	return plan
}

type DriverPass struct {
	local  DriverStore
	cloud  DriverStore
	marker string
	dryRun bool
	logger *zap.Logger
}

func NewDriverPass(local, cloud DriverStore, marker string, dryRun bool, logger *zap.Logger) *DriverPass {
	return &DriverPass{
		local:  local,
		cloud:  cloud,
		marker: marker,
		dryRun: dryRun,
		logger: logger.With(zap.String("pass", string(PassDrivers))),
	}
}

func (p *DriverPass) Run(ctx context.Context) (*DriverReport, error) {
	start := time.Now()
	p.logger.Info("Starting driver reconciliation", zap.String("marker", p.marker))

	local, err := p.local.FindByNameMarker(ctx, p.marker)
	if err != nil {
		return nil, fmt.Errorf("failed to load local drivers: %w", err)
	}

	cloud, err := p.cloud.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load cloud drivers: %w", err)
	}

	plan := PlanDriverSync(local, cloud)
	report := &DriverReport{
		LocalDrivers:       len(local),
		CloudDrivers:       len(cloud),
		InsertedToCloud:    len(plan.NewToCloud),
		LocalMobileUpdated: len(plan.UpdateLocalMobile),
		CloudMobileUpdated: len(plan.UpdateCloudMobile),
	}

	if !p.dryRun {
		if err := p.apply(ctx, plan); err != nil {
			return report, err
		}
	}

	p.logger.Info("Driver reconciliation completed",
		zap.Int("local_drivers", report.LocalDrivers),
		zap.Int("cloud_drivers", report.CloudDrivers),
		zap.Int("inserted_to_cloud", report.InsertedToCloud),
		zap.Int("local_mobile_updated", report.LocalMobileUpdated),
		zap.Int("cloud_mobile_updated", report.CloudMobileUpdated),
		zap.Bool("dry_run", p.dryRun),
		zap.Duration("duration", time.Since(start)))

	return report, nil
}

func (p *DriverPass) apply(ctx context.Context, plan DriverPlan) error {
	if len(plan.NewToCloud) > 0 {
		if err := p.cloud.InsertMany(ctx, plan.NewToCloud); err != nil {
			return fmt.Errorf("failed to insert drivers into cloud: %w", err)
		}
	}

	if len(plan.UpdateLocalMobile) > 0 {
		if err := p.local.UpdateMobileNumbers(ctx, plan.UpdateLocalMobile); err != nil {
			return fmt.Errorf("failed to update local mobile numbers: %w", err)
		}
	}

	if len(plan.UpdateCloudMobile) > 0 {
		if err := p.cloud.UpdateMobileNumbers(ctx, plan.UpdateCloudMobile); err != nil {
			return fmt.Errorf("failed to update cloud mobile numbers: %w", err)
		}
	}

	return nil
}
