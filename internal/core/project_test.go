package core

import (
	"context"
	"errors"
	"testing"
	"twincore/internal/persistence"
	"twincore/pkg/domain"
)

func openTestProject(t *testing.T, backend persistence.Backend) *Project {
	t.Helper()
	p, _, err := OpenProject(context.Background(), backend, WithIDGenerator(sequentialIDs()))
	if err != nil {
		t.Fatalf("open project: %v", err)
	}
	return p
}

func TestOpenProjectRejectsNilBackend(t *testing.T) {
	if _, _, err := OpenProject(context.Background(), nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestProjectInitCreatesRequiredBuckets(t *testing.T) {
	backend := persistence.NewMemory()
	ctx := context.Background()
	if err := backend.Save(ctx, domain.BucketSystems, []byte(`[{"name":"keep","code":"000001","full_code":"000000000001"}]`)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	p := openTestProject(t, backend)
	if err := p.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	for _, bucket := range domain.RequiredBuckets() {
		if ok, _ := backend.Exists(ctx, bucket); !ok {
			t.Fatalf("bucket %s not initialized", bucket)
		}
	}
	if ok, _ := backend.Exists(ctx, domain.BucketConnectionElements); ok {
		t.Fatalf("optional bucket should not be created")
	}
	if backend.Saves(domain.BucketSystems) != 1 {
		t.Fatalf("existing bucket must not be overwritten")
	}
	if _, err := p.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if p.Systems.Len() != 1 {
		t.Fatalf("expected seeded system to survive init")
	}
}

func TestProjectScenario(t *testing.T) {
	backend := persistence.NewMemory()
	ctx := context.Background()
	p := openTestProject(t, backend)

	line, err := p.Systems.Create(ctx, "Line", "assembly line", "")
	if err != nil {
		t.Fatalf("create system: %v", err)
	}
	robot, err := p.Systems.Create(ctx, "Robot", "", line.FullCode)
	if err != nil {
		t.Fatalf("create subsystem: %v", err)
	}
	welder, err := p.Technologies.Create(ctx, "Welder", "", "")
	if err != nil {
		t.Fatalf("create technology: %v", err)
	}
	if err := p.AssignTechnology(ctx, robot.FullCode, welder.FullCode); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := p.AssignTechnology(ctx, robot.FullCode, "000000000404"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("unknown technology should be rejected, got %v", err)
	}
	if err := p.AssignTechnology(ctx, "000000000404", welder.FullCode); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("unknown system should be rejected, got %v", err)
	}
	if _, err := p.Connect(ctx, line.FullCode, "ELEC", "", robot.FullCode, "feed"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	joint, err := p.ConnectionElements.Create(ctx, "Joint", "", "")
	if err != nil || joint.FullCode != "00000001" {
		t.Fatalf("connection element should use the 2/2 layout: %+v %v", joint, err)
	}

	refs := p.Resolver().Technologies(robot.FullCode)
	if len(refs) != 1 || refs[0].Name != "Welder" {
		t.Fatalf("unexpected technology refs %+v", refs)
	}
	lineage, err := p.Describe(ctx, domain.KindSystem, robot.FullCode, domain.BehaviorLineage)
	if err != nil || lineage != "Line / Robot" {
		t.Fatalf("describe: %q %v", lineage, err)
	}
	if _, err := p.Describe(ctx, domain.KindTechnology, "000000000404", domain.BehaviorSummary); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("describe of missing entity should fail, got %v", err)
	}
	if _, err := p.Describe(ctx, "widget", line.FullCode, domain.BehaviorSummary); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("describe of unknown kind should fail, got %v", err)
	}

	res, err := p.Check(ctx)
	if err != nil || len(res.Violations) != 0 {
		t.Fatalf("consistent project should pass: %+v %v", res.Violations, err)
	}

	reopened := openTestProject(t, backend)
	if reopened.Systems.Len() != 2 || reopened.Technologies.Len() != 1 || reopened.Connections.Len() != 1 || reopened.ConnectionElements.Len() != 1 {
		t.Fatalf("reopened project lost data: %d %d %d %d",
			reopened.Systems.Len(), reopened.Technologies.Len(), reopened.Connections.Len(), reopened.ConnectionElements.Len())
	}
	views := reopened.Resolver().Connections(robot.FullCode, domain.RoleTarget)
	if len(views) != 1 || views[0].Source.Name != "Line" {
		t.Fatalf("unexpected reopened connections %+v", views)
	}
}

func TestProjectDeleteLeavesDanglingUntilPruned(t *testing.T) {
	p := openTestProject(t, persistence.NewMemory())
	ctx := context.Background()
	sys, _ := p.Systems.Create(ctx, "sys", "", "")
	other, _ := p.Systems.Create(ctx, "other", "", "")
	tech, _ := p.Technologies.Create(ctx, "tech", "", "")
	if err := p.AssignTechnology(ctx, sys.FullCode, tech.FullCode); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := p.Connect(ctx, sys.FullCode, "MECH", "", other.FullCode, ""); err != nil {
		t.Fatalf("connect: %v", err)
	}

	if _, err := p.Technologies.Delete(ctx, tech.FullCode); err != nil {
		t.Fatalf("delete tech: %v", err)
	}
	if _, err := p.Systems.Delete(ctx, other.FullCode); err != nil {
		t.Fatalf("delete system: %v", err)
	}
	got, _ := p.Systems.Get(sys.FullCode)
	if !got.HasTechnology(tech.FullCode) || p.Connections.Len() != 1 {
		t.Fatalf("delete must not cascade into references")
	}
	refs := p.Resolver().Technologies(sys.FullCode)
	if len(refs) != 1 || !refs[0].Missing {
		t.Fatalf("dangling ref should resolve as missing: %+v", refs)
	}
	res, _ := p.Check(ctx)
	if res.HasBlocking() || res.Count(domain.SeverityWarn) != 2 {
		t.Fatalf("expected two dangling warnings, got %+v", res.Violations)
	}

	report, err := p.PruneDangling(ctx)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if len(report.TechnologyRefs[sys.FullCode]) != 1 || len(report.Connections) != 1 {
		t.Fatalf("unexpected prune report %+v", report)
	}
	res, _ = p.Check(ctx)
	if len(res.Violations) != 0 {
		t.Fatalf("pruned project should be clean, got %+v", res.Violations)
	}
	report, _ = p.PruneDangling(ctx)
	if report.TechnologyRefs != nil || len(report.Connections) != 0 {
		t.Fatalf("second prune should find nothing: %+v", report)
	}
}

func TestProjectSaveAllJoinsFailures(t *testing.T) {
	backend := persistence.NewMemory()
	p := openTestProject(t, backend)
	ctx := context.Background()
	backend.FailSaves(domain.BucketSystems, errors.New("systems down"))
	backend.FailSaves(domain.BucketConnections, errors.New("connections down"))

	err := p.SaveAll(ctx)
	if err == nil {
		t.Fatalf("expected joined failure")
	}
	var perr *domain.PersistenceError
	if !errors.As(err, &perr) || !errors.Is(err, domain.ErrPersistenceFailed) {
		t.Fatalf("expected persistence errors, got %v", err)
	}
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok || len(joined.Unwrap()) != 2 {
		t.Fatalf("expected two joined errors, got %v", err)
	}
	if ok, _ := backend.Exists(ctx, domain.BucketTechnologies); !ok {
		t.Fatalf("healthy buckets should still be written")
	}
}

func TestProjectReportsLoadRepairs(t *testing.T) {
	backend := persistence.NewMemory()
	ctx := context.Background()
	payload := `[
		{"name":"root","code":"000001","parent_code":"000000","full_code":"000000000001","children_codes":[]},
		{"name":"child","code":"010001","parent_code":"000001","full_code":"000001010001"}
	]`
	if err := backend.Save(ctx, domain.BucketTechnologies, []byte(payload)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, report, err := OpenProject(ctx, backend)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !report.Systems.Missing || !report.Connections.Missing {
		t.Fatalf("unsaved buckets should be reported missing: %+v", report)
	}
	if len(report.Repairs()) == 0 || !hasRepair(report.Technologies, RepairLegacyParent, "000001010001") {
		t.Fatalf("expected legacy parent repair, got %+v", report.Technologies.Repairs)
	}
}
